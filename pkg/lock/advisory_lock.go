package lock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// KeyFor は名前空間と部分文字列からアドバイザリロックのIDを生成します
// 部分同士はNUL区切りでハッシュするため、連結結果が同じでも別のIDになります
func KeyFor(namespace string, parts ...string) int64 {
	h := sha256.New()
	h.Write([]byte(namespace))
	for _, part := range parts {
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	sum := h.Sum(nil)

	// ハッシュの先頭8バイトをint64として使用
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// AcquireXact はトランザクションスコープのアドバイザリロックを取得します
// ロックはコミットまたはロールバック時に自動的に解放されます
func AcquireXact(ctx context.Context, tx pgx.Tx, lockID int64) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockID); err != nil {
		return fmt.Errorf("failed to acquire advisory lock: %w", err)
	}
	return nil
}
