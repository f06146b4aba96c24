package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成(已静止)
	TaskStatusFailed    TaskStatus = "failed"    // 启动失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// CrawlMode 渲染模式
type CrawlMode string

const (
	ModeDynamic CrawlMode = "dynamic" // 无头浏览器渲染(执行脚本)
	ModeStatic  CrawlMode = "static"  // 仅HTTP抓取(不执行脚本)
)

// QueueOrder 待处理队列的出队顺序
type QueueOrder string

const (
	OrderLIFO QueueOrder = "lifo" // 后进先出(深度优先)
	OrderFIFO QueueOrder = "fifo" // 先进先出(广度优先)
)

// DefaultConcurrency 默认并发渲染上限
const DefaultConcurrency = 2

// TaskStats 任务统计
type TaskStats struct {
	DiscoveredURLs int     `json:"discovered_urls"` // 已发现URL数(含入口)
	DispatchedURLs int     `json:"dispatched_urls"` // 已派发渲染的URL数
	CompletedURLs  int     `json:"completed_urls"`  // 已完成(成功或失败)的URL数
	Snapshots      int     `json:"snapshots"`       // 写入的快照数
	FailedPages    int     `json:"failed_pages"`    // 失败页面数
	CancelledURLs  int     `json:"cancelled_urls"`  // 因取消而未派发的URL数
	PeakInFlight   int     `json:"peak_in_flight"`  // 峰值并发数
	TotalSize      int64   `json:"total_size"`      // 快照总大小(字节)
	Duration       float64 `json:"duration"`        // 总耗时(秒)
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	Concurrency    int        `mapstructure:"concurrency" json:"concurrency"`           // 并发渲染上限 (默认:2)
	WaitTime       int        `mapstructure:"wait_time" json:"wait_time"`               // 页面加载后等待时间(秒) (默认:3)
	NavTimeout     int        `mapstructure:"nav_timeout" json:"nav_timeout"`           // 导航超时(秒) (默认:30)
	PollInterval   int        `mapstructure:"poll_interval_ms" json:"poll_interval_ms"` // 静止检测间隔(毫秒) (默认:1000)
	Mode           CrawlMode  `mapstructure:"mode" json:"mode"`                         // 渲染模式 (默认:dynamic)
	Order          QueueOrder `mapstructure:"order" json:"order"`                       // 出队顺序 (默认:lifo)
	IgnorePatterns []string   `mapstructure:"ignore" json:"ignore_patterns"`            // 忽略的URL正则
	Headless       bool       `mapstructure:"headless" json:"headless"`                 // 无头模式 (默认:true)
	ShowProgress   bool       `mapstructure:"progress" json:"show_progress"`            // 显示进度条

	// 资源配置(MB / %)
	SafetyReserveMemory int `mapstructure:"-" json:"safety_reserve_memory"`
	SafetyThreshold     int `mapstructure:"-" json:"safety_threshold"`
	CPULoadThreshold    int `mapstructure:"-" json:"cpu_load_threshold"`
	MaxTabsLimit        int `mapstructure:"-" json:"max_tabs_limit"`
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.Concurrency < 1 || c.Concurrency > 16 {
		return fmt.Errorf("并发数必须在1-16之间,当前值: %d", c.Concurrency)
	}
	if c.WaitTime < 0 || c.WaitTime > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间,当前值: %d", c.WaitTime)
	}
	if c.NavTimeout < 1 || c.NavTimeout > 300 {
		return fmt.Errorf("导航超时必须在1-300秒之间,当前值: %d", c.NavTimeout)
	}
	if c.PollInterval < 10 {
		return fmt.Errorf("静止检测间隔不能小于10毫秒,当前值: %d", c.PollInterval)
	}
	switch c.Mode {
	case ModeDynamic, ModeStatic:
	default:
		return fmt.Errorf("无效的渲染模式: %s (有效值: dynamic, static)", c.Mode)
	}
	switch c.Order {
	case OrderLIFO, OrderFIFO:
	default:
		return fmt.Errorf("无效的出队顺序: %s (有效值: lifo, fifo)", c.Order)
	}
	for _, p := range c.IgnorePatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("无效的忽略规则 %q: %w", p, err)
		}
	}
	return nil
}

// SettleDelay 页面稳定等待时长
func (c *CrawlConfig) SettleDelay() time.Duration {
	return time.Duration(c.WaitTime) * time.Second
}

// CrawlTask 一次爬取会话
type CrawlTask struct {
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	StartURL    string     `json:"start_url"`              // 入口URL
	Domain      string     `json:"domain"`                 // 解析的域名
	OutputDir   string     `json:"output_dir"`             // 快照根目录
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	Config CrawlConfig `json:"config"`
	Status TaskStatus  `json:"status"`
	Stats  TaskStats   `json:"stats"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewCrawlTask 创建新任务
func NewCrawlTask(startURL string, outputDir string, config CrawlConfig) (*CrawlTask, error) {
	if err := ValidateURL(startURL); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	parsed, _ := url.Parse(startURL)

	return &CrawlTask{
		ID:        generateID(),
		StartURL:  startURL,
		Domain:    parsed.Host,
		OutputDir: outputDir,
		CreatedAt: time.Now(),
		Config:    config,
		Status:    TaskStatusPending,
	}, nil
}

// MarkStarted 标记任务开始
func (t *CrawlTask) MarkStarted() {
	now := time.Now()
	t.StartedAt = &now
	t.Status = TaskStatusRunning
}

// MarkFinished 标记任务结束
func (t *CrawlTask) MarkFinished(status TaskStatus, err error) {
	now := time.Now()
	t.CompletedAt = &now
	t.Status = status
	if err != nil {
		t.ErrorMessage = err.Error()
	}
}

// ToJSON 序列化为JSON
func (t *CrawlTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}
