package domain

import "context"

// TelemetryRepository は取り込み先テーブルへのアクセスを抽象化する
type TelemetryRepository interface {
	// Exists はキーが一致する行が既に存在するかを返す
	Exists(ctx context.Context, key UniquenessKey) (bool, error)

	// InsertIfAbsent はキーが一致する行が無い場合のみ挿入する
	// 挿入した場合は true を返す
	InsertIfAbsent(ctx context.Context, rec EmbeddedRecord) (bool, error)
}

// RowError は取り込めなかったCSV行
type RowError struct {
	Line int
	Err  error
}

// RecordSource はCSVなどからレコード列を読み出す
type RecordSource interface {
	// Read は解釈できたレコードと、行単位の解釈エラーを返す
	// ヘッダ不備やファイル読み込み失敗はerrorとして返す
	Read(ctx context.Context, path string) ([]TelemetryRecord, []RowError, error)
}
