package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/jinford/solar-assistant/internal/module/ingestion/domain"
	"github.com/jinford/solar-assistant/internal/platform/database"
	"github.com/jinford/solar-assistant/pkg/lock"
)

// DefaultTable は取り込み先のデフォルトテーブル名
const DefaultTable = "solar_data"

// querier はプールとトランザクションの共通部分
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TelemetryRepository は発電量データテーブルの永続化アダプターです
type TelemetryRepository struct {
	pool  *pgxpool.Pool
	txp   *database.TransactionProvider
	table string
	ident string
}

// NewTelemetryRepository は新しいリポジトリを作成します
// tableが空の場合は DefaultTable を使います
func NewTelemetryRepository(pool *pgxpool.Pool, table string) *TelemetryRepository {
	if table == "" {
		table = DefaultTable
	}
	return &TelemetryRepository{
		pool:  pool,
		txp:   database.NewTransactionProvider(pool),
		table: table,
		ident: pgx.Identifier{table}.Sanitize(),
	}
}

var _ domain.TelemetryRepository = (*TelemetryRepository)(nil)

// EnsureSchema はvector拡張とテーブルを作成します（存在する場合は何もしない）
func (r *TelemetryRepository) EnsureSchema(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", dimension)
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          BIGSERIAL PRIMARY KEY,
	date_time   TIMESTAMP NOT NULL,
	plant_id    TEXT NOT NULL,
	source_key  TEXT NOT NULL,
	dc_power    DOUBLE PRECISION NOT NULL,
	ac_power    DOUBLE PRECISION NOT NULL,
	daily_yield DOUBLE PRECISION NOT NULL,
	total_yield DOUBLE PRECISION NOT NULL,
	content     TEXT NOT NULL,
	embedding   vector(%d) NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`, r.ident, dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (plant_id, source_key, dc_power, ac_power)`,
			pgx.Identifier{r.table + "_uniqueness_idx"}.Sanitize(), r.ident),
	}

	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Exists はキーが一致する行が存在するかを返します
func (r *TelemetryRepository) Exists(ctx context.Context, key domain.UniquenessKey) (bool, error) {
	return r.exists(ctx, r.pool, key)
}

// InsertIfAbsent はキー単位のアドバイザリロックを取った上で存在を再確認し、無ければ挿入します
// 同じCSVを並行して取り込んでも重複行は作られません
func (r *TelemetryRepository) InsertIfAbsent(ctx context.Context, rec domain.EmbeddedRecord) (bool, error) {
	key := rec.Key()

	return database.Transact(ctx, r.txp, func(tx pgx.Tx) (bool, error) {
		if err := lock.AcquireXact(ctx, tx, lock.KeyFor(r.table, key.String())); err != nil {
			return false, err
		}

		found, err := r.exists(ctx, tx, key)
		if err != nil {
			return false, err
		}
		if found {
			return false, nil
		}

		if err := r.insert(ctx, tx, rec); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (r *TelemetryRepository) exists(ctx context.Context, q querier, key domain.UniquenessKey) (bool, error) {
	sql := fmt.Sprintf(`SELECT EXISTS (
	SELECT 1 FROM %s
	WHERE plant_id = $1 AND source_key = $2 AND dc_power = $3 AND ac_power = $4
)`, r.ident)

	var found bool
	if err := q.QueryRow(ctx, sql, key.PlantID, key.SourceKey, key.DCPower, key.ACPower).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to check existing record: %w", err)
	}
	return found, nil
}

func (r *TelemetryRepository) insert(ctx context.Context, q querier, rec domain.EmbeddedRecord) error {
	sql := fmt.Sprintf(`INSERT INTO %s
	(date_time, plant_id, source_key, dc_power, ac_power, daily_yield, total_yield, content, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, r.ident)

	_, err := q.Exec(ctx, sql,
		rec.SortableTime,
		rec.PlantID,
		rec.SourceKey,
		rec.DCPower,
		rec.ACPower,
		rec.DailyYield,
		rec.TotalYield,
		rec.Content,
		pgvector.NewVector(rec.Embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

// Count はテーブルの行数を返します
func (r *TelemetryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, r.ident)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}
