package crawlers

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfScope         = errors.New("URL不在入口URL范围内")
	ErrInvalidPattern     = errors.New("无效的忽略规则")
	ErrBrowserUnavailable = errors.New("浏览器不可用")
	ErrSchedulerStarted   = errors.New("调度器已启动")
)

// NavigationError 渲染器无法加载页面
// 该URL不会被写入快照,但流水线仍然上报完成
type NavigationError struct {
	URL    string
	Status int // HTTP状态码, 0表示没有收到响应
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("导航失败 [%s]: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("导航失败 [%s]: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// ExtractionError 链接或内容提取失败,仅影响当前页面
type ExtractionError struct {
	URL   string
	Stage string // links, content, panic
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("提取失败 [%s] (%s): %v", e.URL, e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// PersistError 快照写入失败
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("写入快照失败 [%s]: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}
