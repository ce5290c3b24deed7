package domain

import "errors"

var (
	// ErrMissingColumn はCSVヘッダに必須列が無い場合のエラー
	ErrMissingColumn = errors.New("missing required column")

	// ErrInvalidNumber は数値列を解釈できない場合のエラー
	ErrInvalidNumber = errors.New("invalid numeric field")

	// ErrInvalidTimestamp は日時列を解釈できない場合のエラー
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)
