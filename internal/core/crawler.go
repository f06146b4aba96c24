package core

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/RecoveryAshes/fragcrawl/internal/crawlers"
	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

// Crawler 单个入口URL的爬取协调器
// 组装渲染器、调度器、流水线和终止检测, 结束后写入报告
type Crawler struct {
	task      *models.CrawlTask
	cfg       *Config
	outputDir string
	headers   models.HeaderProvider

	renderer crawlers.Renderer
}

// NewCrawler 创建爬取器, outputDir 为快照根目录
func NewCrawler(startURL string, cfg *Config, outputDir string, headers models.HeaderProvider) (*Crawler, error) {
	task, err := models.NewCrawlTask(startURL, outputDir, cfg.Crawl)
	if err != nil {
		return nil, err
	}
	if _, err := crawlers.CompileIgnorePatterns(cfg.Crawl.IgnorePatterns); err != nil {
		return nil, err
	}
	return &Crawler{
		task:      task,
		cfg:       cfg,
		outputDir: outputDir,
		headers:   headers,
	}, nil
}

// SetRenderer 使用外部提供的渲染器, 不再按模式创建
func (c *Crawler) SetRenderer(r crawlers.Renderer) {
	c.renderer = r
}

// Task 任务信息
func (c *Crawler) Task() *models.CrawlTask {
	return c.task
}

// ReportDir 报告目录
func (c *Crawler) ReportDir() string {
	dir := c.cfg.Output.ReportDir
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.outputDir, dir)
}

// Crawl 爬取直到静止或 ctx 被取消
// 单个页面的失败不会返回错误, 只有初始化失败(浏览器、输出目录等)才会
func (c *Crawler) Crawl(ctx context.Context) (*models.CrawlReport, error) {
	crawlCfg := c.cfg.Crawl
	c.task.MarkStarted()

	utils.Infof("开始爬取任务 [%s]", c.task.ID)
	utils.Infof("入口URL: %s", c.task.StartURL)
	utils.Infof("渲染模式: %s, 输出目录: %s", crawlCfg.Mode, c.outputDir)

	rm := crawlers.NewResourceMonitor(c.cfg.ResourceMonitorConfig())
	rm.StartMonitoring(time.Second)
	defer rm.StopMonitoring()
	limit := rm.EffectiveConcurrency(crawlCfg.Concurrency)

	renderer, err := c.openRenderer(rm, limit)
	if err != nil {
		c.task.MarkFinished(models.TaskStatusFailed, err)
		return nil, err
	}
	defer func() {
		if cerr := renderer.Close(); cerr != nil {
			utils.Warnf("关闭渲染器失败: %v", cerr)
		}
	}()

	writer, err := crawlers.NewSnapshotWriter(c.outputDir)
	if err != nil {
		c.task.MarkFinished(models.TaskStatusFailed, err)
		return nil, err
	}

	pipeline := crawlers.NewPagePipeline(renderer, writer, c.task.StartURL, crawlCfg.SettleDelay())
	bar := utils.NewProgressBar(1, "爬取页面", crawlCfg.ShowProgress)

	sched, err := crawlers.NewScheduler(pipeline, crawlers.SchedulerOptions{
		Concurrency:    limit,
		Order:          crawlCfg.Order,
		IgnorePatterns: crawlCfg.IgnorePatterns,
		OnProgress:     progressUpdater(bar),
	})
	if err != nil {
		c.task.MarkFinished(models.TaskStatusFailed, err)
		return nil, err
	}

	if err := sched.Start(ctx, c.task.StartURL); err != nil {
		c.task.MarkFinished(models.TaskStatusFailed, err)
		return nil, err
	}

	status := models.TaskStatusCompleted
	monitor := crawlers.NewTerminationMonitor(sched, time.Duration(crawlCfg.PollInterval)*time.Millisecond)
	if err := monitor.Wait(ctx); err != nil {
		status = models.TaskStatusCancelled
		utils.Warnf("爬取被中断(%v), 等待进行中的页面完成...", err)
		<-sched.Idle()
	}
	if ctx.Err() != nil {
		status = models.TaskStatusCancelled
	}
	sched.Wait()
	_ = bar.Finish()

	c.task.MarkFinished(status, nil)
	report := c.buildReport(sched, pipeline, writer.Root())

	reporter := utils.NewReporter(c.ReportDir())
	if err := reporter.GenerateReport(report); err != nil {
		utils.Warnf("生成报告失败: %v", err)
	}

	c.printSummary(report)
	return report, nil
}

func (c *Crawler) openRenderer(rm *crawlers.ResourceMonitor, limit int) (crawlers.Renderer, error) {
	if c.renderer != nil {
		return c.renderer, nil
	}

	navTimeout := time.Duration(c.cfg.Crawl.NavTimeout) * time.Second
	switch c.cfg.Crawl.Mode {
	case models.ModeStatic:
		return crawlers.NewStaticRenderer(navTimeout, c.headers), nil
	case models.ModeDynamic:
		return crawlers.NewBrowserRenderer(crawlers.BrowserOptions{
			Headless:    c.cfg.Crawl.Headless,
			NavTimeout:  navTimeout,
			MaxPages:    limit,
			BinPath:     c.cfg.Browser.BinPath,
			ControlURL:  c.cfg.Browser.ControlURL,
			DisableImgs: c.cfg.Browser.DisableImages,
		}, rm, c.headers)
	default:
		return nil, fmt.Errorf("无效的渲染模式: %s", c.cfg.Crawl.Mode)
	}
}

// progressUpdater 进度条总数随发现的URL增长
// 进度回调在调度锁外并发到达, 较旧的快照可能晚到, 只接受更大的值
func progressUpdater(bar *progressbar.ProgressBar) func(crawlers.Progress) {
	var t progressTracker
	return func(p crawlers.Progress) {
		t.mu.Lock()
		defer t.mu.Unlock()
		grewMax, advanced := t.advance(p)
		if grewMax {
			bar.ChangeMax(t.max)
		}
		if advanced {
			_ = bar.Set(t.completed)
		}
	}
}

// progressTracker 记录已显示的最大值
type progressTracker struct {
	mu        sync.Mutex
	max       int
	completed int
}

// advance 调用方持有 mu
func (t *progressTracker) advance(p crawlers.Progress) (grewMax, advanced bool) {
	if p.Discovered > t.max {
		t.max = p.Discovered
		grewMax = true
	}
	if p.Completed > t.completed {
		t.completed = p.Completed
		advanced = true
	}
	return grewMax, advanced
}

func (c *Crawler) buildReport(sched *crawlers.Scheduler, pipeline *crawlers.PagePipeline, root string) *models.CrawlReport {
	snapshots := pipeline.Snapshots()

	stats := sched.Stats()
	stats.Snapshots = len(snapshots)
	stats.TotalSize = pipeline.TotalSize()
	if c.task.StartedAt != nil && c.task.CompletedAt != nil {
		stats.Duration = c.task.CompletedAt.Sub(*c.task.StartedAt).Seconds()
	}
	c.task.Stats = stats

	report := &models.CrawlReport{
		TaskID:      c.task.ID,
		StartURL:    c.task.StartURL,
		Domain:      c.task.Domain,
		Mode:        c.cfg.Crawl.Mode,
		Status:      c.task.Status,
		Duration:    stats.Duration,
		Stats:       stats,
		Snapshots:   snapshots,
		FailedPages: sched.Failures(),
		OutputDir:   root,
		Config:      c.cfg.Crawl,
	}
	if c.task.StartedAt != nil {
		report.StartTime = *c.task.StartedAt
	}
	if c.task.CompletedAt != nil {
		report.EndTime = *c.task.CompletedAt
	}
	return report
}

func (c *Crawler) printSummary(report *models.CrawlReport) {
	s := report.Stats
	utils.Infof("爬取任务结束 [%s]: %s", report.TaskID, report.Status)
	utils.Infof("已发现: %d, 已渲染: %d, 快照: %d, 失败: %d, 取消: %d",
		s.DiscoveredURLs, s.DispatchedURLs, s.Snapshots, s.FailedPages, s.CancelledURLs)
	utils.Infof("快照总大小: %.2f KB, 峰值并发: %d, 总耗时: %.2f秒",
		float64(s.TotalSize)/1024, s.PeakInFlight, s.Duration)
}
