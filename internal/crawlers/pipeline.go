package crawlers

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

// PagePipeline 渲染、提取并保存单个页面
type PagePipeline struct {
	renderer Renderer
	writer   *SnapshotWriter
	startURL string
	settle   time.Duration

	mu        sync.Mutex
	snapshots []models.SnapshotRecord
	totalSize int64
}

// NewPagePipeline 创建流水线
func NewPagePipeline(renderer Renderer, writer *SnapshotWriter, startURL string, settle time.Duration) *PagePipeline {
	return &PagePipeline{
		renderer: renderer,
		writer:   writer,
		startURL: startURL,
		settle:   settle,
	}
}

// Run 实现Pipeline
// 快照路径由派发的URL决定, 与页面加载后的地址无关
func (p *PagePipeline) Run(ctx context.Context, pageURL string, discover func(models.LinkEvent)) error {
	doc, err := p.renderer.Open(ctx, pageURL)
	if err != nil {
		// 取消不是导航失败, 保留原错误以便归类为 cancelled
		var navErr *NavigationError
		if errors.As(err, &navErr) || errors.Is(err, context.Canceled) {
			return err
		}
		return &NavigationError{URL: pageURL, Err: err}
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			utils.Debugf("关闭页面失败 [%s]: %v", pageURL, cerr)
		}
	}()

	if err := sleepContext(ctx, p.settle); err != nil {
		return err
	}

	links, err := doc.Links()
	if err != nil {
		return &ExtractionError{URL: pageURL, Stage: "links", Err: err}
	}
	for _, link := range links {
		discover(models.LinkEvent{URL: link, SourceURL: pageURL})
	}

	markup, err := doc.CleanHTML()
	if err != nil {
		return &ExtractionError{URL: pageURL, Stage: "content", Err: err}
	}

	relPath, err := MapToPath(pageURL, p.startURL)
	if err != nil {
		return &PersistError{Path: pageURL, Err: err}
	}
	full, err := p.writer.Write(relPath, markup)
	if err != nil {
		return err
	}

	p.record(models.SnapshotRecord{
		URL:      pageURL,
		FilePath: relPath,
		Size:     int64(len(markup)),
		Hash:     fmt.Sprintf("%x", sha256.Sum256([]byte(markup))),
		SavedAt:  time.Now(),
	})
	utils.Infof("已保存快照: %s -> %s", pageURL, full)
	return nil
}

func (p *PagePipeline) record(rec models.SnapshotRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = append(p.snapshots, rec)
	p.totalSize += rec.Size
}

// Snapshots 已保存快照的副本
func (p *PagePipeline) Snapshots() []models.SnapshotRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.SnapshotRecord, len(p.snapshots))
	copy(out, p.snapshots)
	return out
}

// TotalSize 快照总字节数
func (p *PagePipeline) TotalSize() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalSize
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
