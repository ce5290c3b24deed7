package application

import (
	"context"
	"time"
)

// Pacer は一定件数ごとに処理を一時停止させる単純なスロットル
// 上流からの背圧は見ず、件数だけで判断する
type Pacer struct {
	every int
	pause time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer は新しいPacerを作成する。every <= 0 または pause <= 0 の場合は停止しない
func NewPacer(every int, pause time.Duration) *Pacer {
	return &Pacer{every: every, pause: pause, sleep: sleepContext}
}

// After はi番目のレコード処理後に呼ばれ、必要なら停止する
// 停止した場合は true を返す。停止中にctxがキャンセルされるとエラーを返す
func (p *Pacer) After(ctx context.Context, i int) (bool, error) {
	if p == nil || p.every <= 0 || p.pause <= 0 {
		return false, nil
	}
	if i <= 0 || i%p.every != 0 {
		return false, nil
	}
	if err := p.sleep(ctx, p.pause); err != nil {
		return false, err
	}
	return true, nil
}

// sleepContext はctxがキャンセルされるまでの間だけ待機する
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
