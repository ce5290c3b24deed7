package csvreader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jinford/solar-assistant/internal/module/ingestion/domain"
)

// 必須列
const (
	ColDateTime   = "DATE_TIME"
	ColPlantID    = "PLANT_ID"
	ColSourceKey  = "SOURCE_KEY"
	ColDCPower    = "DC_POWER"
	ColACPower    = "AC_POWER"
	ColDailyYield = "DAILY_YIELD"
	ColTotalYield = "TOTAL_YIELD"
)

var requiredColumns = []string{
	ColDateTime, ColPlantID, ColSourceKey, ColDCPower, ColACPower, ColDailyYield, ColTotalYield,
}

// Reader はヘッダ付きCSVを読み込むRecordSource実装
type Reader struct{}

// New は新しいReaderを作成する
func New() *Reader {
	return &Reader{}
}

// Read はファイル全体を読み込み、レコードに変換する
func (r *Reader) Read(_ context.Context, path string) ([]domain.TelemetryRecord, []domain.RowError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv file: %w", err)
	}
	return Parse(bytes.NewReader(data))
}

// Parse はCSVを列名で対応付けて解釈する
// 空行は読み飛ばし、数値を解釈できない行はRowErrorとして返す
func Parse(src io.Reader) ([]domain.TelemetryRecord, []domain.RowError, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty csv", domain.ErrMissingColumn)
		}
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		index[name] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", domain.ErrMissingColumn, col)
		}
	}

	var (
		records []domain.TelemetryRecord
		rowErrs []domain.RowError
	)
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rowErrs = append(rowErrs, domain.RowError{Line: perr.StartLine, Err: err})
				continue
			}
			return nil, nil, fmt.Errorf("failed to read csv: %w", err)
		}

		line, _ := cr.FieldPos(0)
		rec, err := toRecord(index, fields)
		if err != nil {
			rowErrs = append(rowErrs, domain.RowError{Line: line, Err: err})
			continue
		}
		rec.Line = line
		records = append(records, rec)
	}

	return records, rowErrs, nil
}

func toRecord(index map[string]int, fields []string) (domain.TelemetryRecord, error) {
	get := func(col string) string {
		i := index[col]
		if i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	raw := domain.RawFields{
		DateTime:   get(ColDateTime),
		PlantID:    get(ColPlantID),
		SourceKey:  get(ColSourceKey),
		DCPower:    get(ColDCPower),
		ACPower:    get(ColACPower),
		DailyYield: get(ColDailyYield),
		TotalYield: get(ColTotalYield),
	}

	rec := domain.TelemetryRecord{
		DateTime:  raw.DateTime,
		PlantID:   raw.PlantID,
		SourceKey: raw.SourceKey,
		Raw:       raw,
	}

	var err error
	if rec.DCPower, err = parseFloat(ColDCPower, raw.DCPower); err != nil {
		return rec, err
	}
	if rec.ACPower, err = parseFloat(ColACPower, raw.ACPower); err != nil {
		return rec, err
	}
	if rec.DailyYield, err = parseFloat(ColDailyYield, raw.DailyYield); err != nil {
		return rec, err
	}
	if rec.TotalYield, err = parseFloat(ColTotalYield, raw.TotalYield); err != nil {
		return rec, err
	}

	return rec, nil
}

func parseFloat(col, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", domain.ErrInvalidNumber, col, s)
	}
	return v, nil
}

// インターフェース実装の確認
var _ domain.RecordSource = (*Reader)(nil)
