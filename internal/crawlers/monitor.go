package crawlers

import (
	"context"
	"time"

	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

// QuiescenceSource 可被观察是否静止的会话
type QuiescenceSource interface {
	Quiescent() bool
	Idle() <-chan struct{}
}

// TerminationMonitor 检测爬取会话何时结束
type TerminationMonitor struct {
	source   QuiescenceSource
	interval time.Duration
}

// NewTerminationMonitor 创建监视器
func NewTerminationMonitor(source QuiescenceSource, interval time.Duration) *TerminationMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &TerminationMonitor{source: source, interval: interval}
}

// Wait 阻塞直到会话静止(返回nil)或 ctx 结束(返回 ctx.Err())
func (m *TerminationMonitor) Wait(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if m.source.Quiescent() {
			utils.Debugf("爬取会话已静止")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.source.Idle():
		case <-ticker.C:
		}
	}
}
