package domain

import (
	"fmt"
	"strings"
	"time"
)

// SortableTimeLayout は保存先に書き込む日時の書式
const SortableTimeLayout = "2006-01-02 15:04:05"

// TelemetryRecord はCSV1行分の発電量データ
// Raw には元のCSVテキストをそのまま保持し、サマリ生成に使う
type TelemetryRecord struct {
	Line int // CSV上の行番号（ヘッダを1行目とする）

	DateTime   string
	PlantID    string
	SourceKey  string
	DCPower    float64
	ACPower    float64
	DailyYield float64
	TotalYield float64

	Raw RawFields
}

// RawFields はCSVの各フィールドの生テキスト
type RawFields struct {
	DateTime   string
	PlantID    string
	SourceKey  string
	DCPower    string
	ACPower    string
	DailyYield string
	TotalYield string
}

// UniquenessKey は既存行の判定に使うキー
// 全列の一致ではないため、異なる行が重複扱いされることがある
type UniquenessKey struct {
	PlantID   string
	SourceKey string
	DCPower   float64
	ACPower   float64
}

// Key はレコードのUniquenessKeyを返す
func (r TelemetryRecord) Key() UniquenessKey {
	return UniquenessKey{
		PlantID:   r.PlantID,
		SourceKey: r.SourceKey,
		DCPower:   r.DCPower,
		ACPower:   r.ACPower,
	}
}

// String はロックIDやログに使う正規化表現を返す
func (k UniquenessKey) String() string {
	return fmt.Sprintf("%s|%s|%g|%g", k.PlantID, k.SourceKey, k.DCPower, k.ACPower)
}

// EmbeddedRecord はサマリとEmbeddingを付与したレコード
type EmbeddedRecord struct {
	TelemetryRecord
	SortableTime time.Time
	Content      string
	Embedding    []float32
}

// ReformatTimestamp は "DD-MM-YYYY HH:MM" を "YYYY-MM-DD HH:MM:00" に並べ替える
// 時刻部が無い場合は "00:00" を補う。値の妥当性は検査しない
func ReformatTimestamp(raw string) string {
	datePart, timePart, _ := strings.Cut(strings.TrimSpace(raw), " ")
	timePart = strings.TrimSpace(timePart)
	if timePart == "" {
		timePart = "00:00"
	}

	parts := strings.Split(datePart, "-")
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	day, month, year := parts[0], parts[1], parts[2]

	return fmt.Sprintf("%s-%s-%s %s:00", year, month, day, timePart)
}

// ParseSortableTime はReformatTimestampの結果を時刻として解釈する
func ParseSortableTime(raw string) (time.Time, error) {
	s := ReformatTimestamp(raw)
	t, err := time.Parse(SortableTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}
	return t, nil
}

// Summary はEmbedding対象の1行テキストを組み立てる
// 数値は再整形せず、CSVの表記をそのまま使う
func Summary(r TelemetryRecord) string {
	return fmt.Sprintf(
		"Date: %s, Plant ID: %s, Source Key: %s, DC Power: %s, AC Power: %s, Daily Yield: %s, Total Yield: %s",
		r.Raw.DateTime, r.Raw.PlantID, r.Raw.SourceKey, r.Raw.DCPower, r.Raw.ACPower, r.Raw.DailyYield, r.Raw.TotalYield,
	)
}
