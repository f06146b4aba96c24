package core

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/fragcrawl/internal/crawlers"
	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

// BatchCrawler 依次爬取多个入口URL, 每个URL是独立的会话
type BatchCrawler struct {
	cfg           *Config
	batchDelay    time.Duration
	continueOnErr bool
	headers       models.HeaderProvider

	// newRenderer 不为空时为每个会话创建渲染器
	newRenderer func() crawlers.Renderer
}

// BatchResult 单个URL的结果
type BatchResult struct {
	URL       string
	OutputDir string
	Success   bool
	Error     error
	Report    *models.CrawlReport
	Duration  float64
}

// BatchSummary 批量爬取摘要
type BatchSummary struct {
	TotalURLs     int
	SuccessCount  int
	FailCount     int
	TotalPages    int
	TotalSize     int64
	TotalDuration float64
	Results       []BatchResult
}

// NewBatchCrawler 创建批量爬取器, batchDelay 单位为秒
func NewBatchCrawler(cfg *Config, batchDelay int, continueOnErr bool, headers models.HeaderProvider) *BatchCrawler {
	return &BatchCrawler{
		cfg:           cfg,
		batchDelay:    time.Duration(batchDelay) * time.Second,
		continueOnErr: continueOnErr,
		headers:       headers,
	}
}

// OutputDirFor 每个目标的快照目录: <base_dir>/<host>
func (bc *BatchCrawler) OutputDirFor(targetURL string) (string, error) {
	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("无法从URL中提取主机名: %s", targetURL)
	}
	return filepath.Join(bc.cfg.Output.BaseDir, strings.ReplaceAll(u.Host, ":", "_")), nil
}

// CrawlBatch 顺序爬取; ctx 取消后不再开始新的目标
func (bc *BatchCrawler) CrawlBatch(ctx context.Context, urls []string) (*BatchSummary, error) {
	utils.Infof("开始批量爬取: %d个URL", len(urls))

	summary := &BatchSummary{
		TotalURLs: len(urls),
		Results:   make([]BatchResult, 0, len(urls)),
	}
	startTime := time.Now()

	for i, targetURL := range urls {
		if ctx.Err() != nil {
			utils.Warnf("批量爬取被中断, 剩余 %d 个URL未处理", len(urls)-i)
			break
		}
		utils.Infof("==================== [%d/%d] %s ====================", i+1, len(urls), targetURL)

		result := bc.crawlSingleURL(ctx, targetURL)
		summary.Results = append(summary.Results, result)

		if result.Success {
			summary.SuccessCount++
			summary.TotalPages += result.Report.Stats.Snapshots
			summary.TotalSize += result.Report.Stats.TotalSize
		} else {
			summary.FailCount++
			utils.Errorf("爬取失败 [%s]: %v", targetURL, result.Error)
			if !bc.continueOnErr {
				utils.Warn("批量爬取中止 (--continue-on-error=false)")
				break
			}
		}

		if i < len(urls)-1 && bc.batchDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个URL...", bc.batchDelay.Seconds())
			select {
			case <-ctx.Done():
			case <-time.After(bc.batchDelay):
			}
		}
	}

	summary.TotalDuration = time.Since(startTime).Seconds()
	bc.printSummary(summary)

	if summary.FailCount > 0 && !bc.continueOnErr {
		return summary, fmt.Errorf("批量爬取中止: %w", summary.firstError())
	}
	return summary, nil
}

func (bc *BatchCrawler) crawlSingleURL(ctx context.Context, targetURL string) (result BatchResult) {
	result.URL = targetURL
	startTime := time.Now()
	defer func() { result.Duration = time.Since(startTime).Seconds() }()

	outputDir, err := bc.OutputDirFor(targetURL)
	if err != nil {
		result.Error = err
		return result
	}
	result.OutputDir = outputDir

	crawler, err := NewCrawler(targetURL, bc.cfg, outputDir, bc.headers)
	if err != nil {
		result.Error = fmt.Errorf("创建爬取器失败: %w", err)
		return result
	}
	if bc.newRenderer != nil {
		crawler.SetRenderer(bc.newRenderer())
	}

	report, err := crawler.Crawl(ctx)
	if err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	result.Report = report
	return result
}

func (s *BatchSummary) firstError() error {
	for _, r := range s.Results {
		if r.Error != nil {
			return r.Error
		}
	}
	return nil
}

func (bc *BatchCrawler) printSummary(summary *BatchSummary) {
	utils.Info("==================================================")
	utils.Info("批量爬取摘要")
	utils.Infof("总URL数: %d, 成功: %d, 失败: %d", summary.TotalURLs, summary.SuccessCount, summary.FailCount)
	utils.Infof("快照总数: %d, 总大小: %.2f MB", summary.TotalPages, float64(summary.TotalSize)/(1024*1024))
	utils.Infof("总耗时: %.2f秒", summary.TotalDuration)
	utils.Info("==================================================")

	for _, r := range summary.Results {
		if !r.Success {
			utils.Warnf("  - %s: %v", r.URL, r.Error)
		}
	}
}
