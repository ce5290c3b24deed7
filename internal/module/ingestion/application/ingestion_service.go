package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jinford/solar-assistant/internal/module/ingestion/domain"
	llmdomain "github.com/jinford/solar-assistant/internal/module/llm/domain"
)

// DefaultEmbeddingModel は事前チェックで存在を確認するEmbeddingモデル
const DefaultEmbeddingModel = "nomic-embed-text:latest"

// ErrPreflight は取り込み前の推論エンドポイント確認に失敗した場合のエラー
var ErrPreflight = errors.New("inference endpoint preflight failed")

// Report は1回の取り込み結果
type Report struct {
	Total    int
	Inserted int
	Skipped  int
	Failed   int
	Paused   int
	Duration time.Duration
}

// LogValue はReportをslogの属性グループとして出力する
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("total", r.Total),
		slog.Int("inserted", r.Inserted),
		slog.Int("skipped", r.Skipped),
		slog.Int("failed", r.Failed),
		slog.Int("paused", r.Paused),
		slog.Duration("duration", r.Duration),
	)
}

// outcome はレコード1件の処理結果
type outcome int

const (
	outcomeInserted outcome = iota
	outcomeSkipped
	outcomeFailed
)

// IngestionService はCSVのレコードをEmbedding付きで取り込むサービス
type IngestionService struct {
	source   domain.RecordSource
	repo     domain.TelemetryRepository
	embedder llmdomain.Embedder
	models   llmdomain.ModelManager
	model    string
	pacer    *Pacer
	logger   *slog.Logger
}

// IngestionOption は IngestionService のオプション
type IngestionOption func(*IngestionService)

// WithIngestionLogger はロガーを設定する
func WithIngestionLogger(logger *slog.Logger) IngestionOption {
	return func(s *IngestionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithModelManager は事前チェックに使うモデル管理と対象モデル名を設定する
// 設定しない場合、Preflightは何もしない
func WithModelManager(models llmdomain.ModelManager, model string) IngestionOption {
	return func(s *IngestionService) {
		s.models = models
		if model != "" {
			s.model = model
		}
	}
}

// WithPacer はスロットルを差し替える
func WithPacer(p *Pacer) IngestionOption {
	return func(s *IngestionService) {
		s.pacer = p
	}
}

// NewIngestionService は新しいIngestionServiceを作成する
func NewIngestionService(
	source domain.RecordSource,
	repo domain.TelemetryRepository,
	embedder llmdomain.Embedder,
	opts ...IngestionOption,
) *IngestionService {
	s := &IngestionService{
		source:   source,
		repo:     repo,
		embedder: embedder,
		model:    DefaultEmbeddingModel,
		pacer:    NewPacer(10, time.Second),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preflight は推論エンドポイントに到達でき、Embeddingモデルが利用可能かを確認する
// モデルが無い場合はpullを要求する。いずれかの失敗はErrPreflightとして返す
func (s *IngestionService) Preflight(ctx context.Context) error {
	if s.models == nil {
		s.logger.Debug("preflight skipped: no model manager")
		return nil
	}

	models, err := s.models.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: could not list models: %w", ErrPreflight, err)
	}

	for _, m := range models {
		if m.Name == s.model {
			s.logger.Info("embedding model available", "model", s.model)
			return nil
		}
	}

	s.logger.Info("embedding model not found, pulling", "model", s.model)
	if err := s.models.PullModel(ctx, s.model); err != nil {
		return fmt.Errorf("%w: failed to pull %s: %w", ErrPreflight, s.model, err)
	}
	s.logger.Info("embedding model pulled", "model", s.model)

	return nil
}

// Run はファイルを読み込み、全レコードを順に取り込む
// 行単位の失敗はログに残して次の行へ進み、Reportに集計する
// ファイル読み込みの失敗とctxのキャンセルのみエラーとして返す
func (s *IngestionService) Run(ctx context.Context, path string) (*Report, error) {
	started := time.Now()

	records, rowErrs, err := s.source.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	report := &Report{
		Total:  len(records) + len(rowErrs),
		Failed: len(rowErrs),
	}
	errLines := make([]int, 0, len(rowErrs))
	for _, re := range rowErrs {
		s.logger.Error("failed to parse row", "line", re.Line, "error", re.Err)
		errLines = append(errLines, re.Line)
	}
	slices.Sort(errLines)

	s.logger.Info("processing records", "count", len(records), "path", path)

	skippedBefore := 0
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(started)
			return report, err
		}

		// 解析に失敗した行も含めたファイル上のデータ行の通し番号
		for skippedBefore < len(errLines) && errLines[skippedBefore] < rec.Line {
			skippedBefore++
		}
		index := i + skippedBefore

		result, embedded := s.processRecord(ctx, index, report.Total, rec)
		switch result {
		case outcomeInserted:
			report.Inserted++
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed++
		}

		// 既存行として読み飛ばしたレコードでは停止しない
		if !embedded {
			continue
		}
		paused, err := s.pacer.After(ctx, index)
		if err != nil {
			report.Duration = time.Since(started)
			return report, err
		}
		if paused {
			report.Paused++
			s.logger.Debug("pausing", "after", index)
		}
	}

	report.Duration = time.Since(started)
	s.logger.Info("csv processing completed", "report", *report)

	return report, nil
}

// processRecord はレコード1件を取り込む。Embedding段階まで進んだかも返す
func (s *IngestionService) processRecord(ctx context.Context, i, total int, rec domain.TelemetryRecord) (outcome, bool) {
	logger := s.logger.With("record", i+1, "of", total, "line", rec.Line)

	ts, err := domain.ParseSortableTime(rec.DateTime)
	if err != nil {
		logger.Error("failed to parse timestamp", "error", err)
		return outcomeFailed, false
	}
	content := domain.Summary(rec)

	found, err := s.repo.Exists(ctx, rec.Key())
	if err != nil {
		logger.Error("error checking for existing record", "error", err)
		return outcomeFailed, false
	}
	if found {
		logger.Debug("record already exists, skipping")
		return outcomeSkipped, false
	}

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		logger.Error("error generating embedding", "error", err)
		return outcomeFailed, true
	}

	inserted, err := s.repo.InsertIfAbsent(ctx, domain.EmbeddedRecord{
		TelemetryRecord: rec,
		SortableTime:    ts,
		Content:         content,
		Embedding:       embedding,
	})
	if err != nil {
		logger.Error("error inserting record", "error", err)
		return outcomeFailed, true
	}
	if !inserted {
		logger.Info("record inserted concurrently, skipping")
		return outcomeSkipped, true
	}

	logger.Info("processed record")
	return outcomeInserted, true
}
