package domain

import "errors"

var (
	// ErrInvalidRequest はリクエストボディが不正な場合のエラー
	ErrInvalidRequest = errors.New("invalid request")
)
