package crawlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

// Pipeline 单个URL的处理流程
// discover 用于发布页面中发现的链接, 可在Run返回前多次调用
type Pipeline interface {
	Run(ctx context.Context, pageURL string, discover func(models.LinkEvent)) error
}

// PipelineFunc 函数适配器
type PipelineFunc func(ctx context.Context, pageURL string, discover func(models.LinkEvent)) error

// Run 实现Pipeline
func (f PipelineFunc) Run(ctx context.Context, pageURL string, discover func(models.LinkEvent)) error {
	return f(ctx, pageURL, discover)
}

// Progress 调度进度快照
type Progress struct {
	Discovered int
	Dispatched int
	Completed  int
	InFlight   int
	Pending    int
}

// SchedulerOptions 调度器选项
type SchedulerOptions struct {
	Concurrency    int
	Order          models.QueueOrder
	IgnorePatterns []string
	OnProgress     func(Progress) // 在锁外调用
}

// Scheduler 一次爬取会话的调度器
// 已发现集合的插入、待处理队列和进行中计数都由 mu 保护
type Scheduler struct {
	pipeline Pipeline
	registry *Registry
	filter   *DiscoveryFilter
	ignore   []*regexp.Regexp
	order    models.QueueOrder
	limit    int

	onProgress func(Progress)

	mu       sync.Mutex
	ctx      context.Context
	started  bool
	pending  []string
	inFlight int

	dispatched int
	completed  int
	peak       int
	failures   []models.FailedPage

	idle     chan struct{}
	idleOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler 创建调度器
func NewScheduler(pipeline Pipeline, opts SchedulerOptions) (*Scheduler, error) {
	if pipeline == nil {
		return nil, errors.New("pipeline不能为空")
	}
	ignore, err := CompileIgnorePatterns(opts.IgnorePatterns)
	if err != nil {
		return nil, err
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = models.DefaultConcurrency
	}
	order := opts.Order
	if order == "" {
		order = models.OrderLIFO
	}

	return &Scheduler{
		pipeline:   pipeline,
		registry:   NewRegistry(),
		ignore:     ignore,
		order:      order,
		limit:      limit,
		onProgress: opts.OnProgress,
		idle:       make(chan struct{}),
	}, nil
}

// Start 登记入口URL并立即派发
func (s *Scheduler) Start(ctx context.Context, startURL string) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSchedulerStarted
	}
	s.started = true
	s.ctx = ctx
	s.filter = NewDiscoveryFilter(startURL, s.ignore, s.registry)
	s.registry.TryAdd(startURL)
	s.dispatch(startURL)
	p := s.progressLocked()
	s.mu.Unlock()

	utils.Infof("开始爬取: %s (并发上限: %d, 出队顺序: %s)", startURL, s.limit, s.order)
	s.notify(p)
	return nil
}

// Discover 处理一条发现事件, 被接受时返回true
func (s *Scheduler) Discover(ev models.LinkEvent) bool {
	s.mu.Lock()
	if s.filter == nil {
		s.mu.Unlock()
		return false
	}
	accepted, reason := s.filter.Consider(ev.URL)
	if !accepted {
		s.mu.Unlock()
		utils.Debugf("忽略链接 %s (来源 %s): %s", ev.URL, ev.SourceURL, reason)
		return false
	}
	s.onDiscovered(ev.URL)
	p := s.progressLocked()
	s.mu.Unlock()

	utils.Debugf("发现新页面: %s", ev.URL)
	s.notify(p)
	return true
}

// onDiscovered 有空闲槽位时直接派发, 否则入队; 调用方需持有 mu
func (s *Scheduler) onDiscovered(u string) {
	if s.ctx.Err() != nil {
		s.recordFailure(u, models.FailureCancelled, s.ctx.Err().Error())
		return
	}
	if s.inFlight < s.limit {
		s.dispatch(u)
		return
	}
	s.pending = append(s.pending, u)
}

// OnPipelineComplete 一次流水线运行结束(无论成功与否)
func (s *Scheduler) OnPipelineComplete(pageURL string, err error) {
	s.mu.Lock()
	s.inFlight--
	s.completed++

	if err != nil {
		s.recordFailure(pageURL, classifyFailure(err), err.Error())
	}

	if s.ctx.Err() != nil {
		s.dropPendingLocked()
	} else if len(s.pending) > 0 && s.inFlight < s.limit {
		s.dispatch(s.popLocked())
	}

	if s.inFlight == 0 && len(s.pending) == 0 {
		s.idleOnce.Do(func() { close(s.idle) })
	}
	p := s.progressLocked()
	s.mu.Unlock()

	if err != nil {
		utils.Warnf("页面处理失败: %v", err)
	}
	s.notify(p)
}

// dispatch 启动一次流水线运行; 调用方需持有 mu
func (s *Scheduler) dispatch(u string) {
	s.inFlight++
	s.dispatched++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.wg.Add(1)
	go s.run(u)
}

func (s *Scheduler) run(pageURL string) {
	defer s.wg.Done()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = &ExtractionError{URL: pageURL, Stage: "panic", Err: fmt.Errorf("%v", r)}
		}
		s.OnPipelineComplete(pageURL, err)
	}()

	err = s.pipeline.Run(s.ctx, pageURL, func(ev models.LinkEvent) {
		if ev.SourceURL == "" {
			ev.SourceURL = pageURL
		}
		s.Discover(ev)
	})
}

func (s *Scheduler) popLocked() string {
	var u string
	if s.order == models.OrderFIFO {
		u = s.pending[0]
		s.pending = s.pending[1:]
	} else {
		last := len(s.pending) - 1
		u = s.pending[last]
		s.pending = s.pending[:last]
	}
	return u
}

func (s *Scheduler) dropPendingLocked() {
	if len(s.pending) == 0 {
		return
	}
	reason := s.ctx.Err().Error()
	for _, u := range s.pending {
		s.recordFailure(u, models.FailureCancelled, reason)
	}
	utils.Warnf("爬取已取消, 丢弃 %d 个待处理URL", len(s.pending))
	s.pending = nil
}

func (s *Scheduler) recordFailure(u string, kind models.FailureType, msg string) {
	s.failures = append(s.failures, models.FailedPage{
		URL:       u,
		ErrorType: kind,
		ErrorMsg:  msg,
	})
}

func (s *Scheduler) progressLocked() Progress {
	return Progress{
		Discovered: s.registry.Len(),
		Dispatched: s.dispatched,
		Completed:  s.completed,
		InFlight:   s.inFlight,
		Pending:    len(s.pending),
	}
}

func (s *Scheduler) notify(p Progress) {
	if s.onProgress != nil {
		s.onProgress(p)
	}
}

// Quiescent 队列为空且没有进行中的运行
func (s *Scheduler) Quiescent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && s.inFlight == 0 && len(s.pending) == 0
}

// Idle 静止时关闭的通道
func (s *Scheduler) Idle() <-chan struct{} {
	return s.idle
}

// Wait 等待所有已派发的运行结束
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Registry 已发现集合
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// Stats 调度相关统计
func (s *Scheduler) Stats() models.TaskStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cancelled int
	for _, f := range s.failures {
		if f.ErrorType == models.FailureCancelled {
			cancelled++
		}
	}
	return models.TaskStats{
		DiscoveredURLs: s.registry.Len(),
		DispatchedURLs: s.dispatched,
		CompletedURLs:  s.completed,
		FailedPages:    len(s.failures) - cancelled,
		CancelledURLs:  cancelled,
		PeakInFlight:   s.peak,
	}
}

// Failures 失败页面副本
func (s *Scheduler) Failures() []models.FailedPage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FailedPage, len(s.failures))
	copy(out, s.failures)
	return out
}

// classifyFailure 会话取消优先于其他类型; 包装在 NavigationError 中的超时仍算导航失败
func classifyFailure(err error) models.FailureType {
	var navErr *NavigationError
	var persistErr *PersistError
	switch {
	case errors.Is(err, context.Canceled):
		return models.FailureCancelled
	case errors.As(err, &navErr):
		return models.FailureNavigation
	case errors.As(err, &persistErr):
		return models.FailurePersist
	case errors.Is(err, context.DeadlineExceeded):
		return models.FailureCancelled
	default:
		return models.FailureExtraction
	}
}
