package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

var errPoolClosed = errors.New("标签页池已关闭")

// PagePool 标签页池
// 标签页数量不超过 maxSize; 归还的标签页会清空存储并停在 about:blank,
// 保证下一次导航是完整的文档加载而不是同文档的片段跳转
type PagePool struct {
	browser         *rod.Browser
	resourceMonitor *ResourceMonitor
	maxSize         int

	available chan *rod.Page

	mu     sync.Mutex
	pages  []*rod.Page
	closed bool
}

// NewPagePool 创建标签页池
func NewPagePool(browser *rod.Browser, resourceMonitor *ResourceMonitor, maxSize int) *PagePool {
	if maxSize < 1 {
		maxSize = 1
	}
	return &PagePool{
		browser:         browser,
		resourceMonitor: resourceMonitor,
		maxSize:         maxSize,
		available:       make(chan *rod.Page, maxSize),
	}
}

// AcquirePage 获取一个可用的标签页, 池满时阻塞
func (pp *PagePool) AcquirePage(ctx context.Context) (*rod.Page, error) {
	select {
	case page, ok := <-pp.available:
		if !ok {
			return nil, errPoolClosed
		}
		return page, nil
	default:
	}

	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil, errPoolClosed
	}
	if len(pp.pages) < pp.maxSize {
		page, err := pp.createPageLocked()
		pp.mu.Unlock()
		return page, err
	}
	pp.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case page, ok := <-pp.available:
		if !ok {
			return nil, errPoolClosed
		}
		return page, nil
	}
}

func (pp *PagePool) createPageLocked() (*rod.Page, error) {
	if pp.resourceMonitor != nil {
		if ok, reason := pp.resourceMonitor.CheckResourceAvailability(); !ok {
			log.Warn().Msgf("资源紧张, 仍然创建标签页: %s", reason)
		}
	}

	page, err := pp.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		log.Error().Err(err).Msg("创建标签页失败,浏览器可能已崩溃")
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	pp.pages = append(pp.pages, page)
	log.Debug().Msgf("创建新标签页,当前标签页数: %d, 最大限制: %d", len(pp.pages), pp.maxSize)
	return page, nil
}

// ReleasePage 清理后归还标签页, 清理失败则销毁
func (pp *PagePool) ReleasePage(page *rod.Page) {
	if page == nil {
		return
	}

	if err := pp.cleanPage(page); err != nil {
		log.Warn().Err(err).Msg("清理标签页失败,重试一次")
		if err = pp.cleanPage(page); err != nil {
			log.Warn().Err(err).Msg("重试清理失败,销毁该标签页")
			pp.destroyPage(page)
			return
		}
	}

	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.closed {
		_ = page.Close()
		return
	}
	select {
	case pp.available <- page:
	default:
		pp.removeLocked(page)
		_ = page.Close()
	}
}

const clearStorageJS = `() => {
	try { localStorage.clear(); } catch (e) {}
	try { sessionStorage.clear(); } catch (e) {}
	try {
		document.cookie.split(";").forEach(function (c) {
			var name = c.split("=")[0].trim();
			if (name) {
				document.cookie = name + "=;expires=Thu, 01 Jan 1970 00:00:00 UTC;path=/";
			}
		});
	} catch (e) {}
	return true;
}`

// cleanPage 清空存储并回到 about:blank
func (pp *PagePool) cleanPage(page *rod.Page) error {
	if _, err := page.Evaluate(rod.Eval(clearStorageJS)); err != nil {
		log.Debug().Err(err).Msg("清理存储失败")
	}
	if err := page.Navigate("about:blank"); err != nil {
		return fmt.Errorf("重置标签页失败: %w", err)
	}
	return nil
}

func (pp *PagePool) destroyPage(page *rod.Page) {
	pp.mu.Lock()
	pp.removeLocked(page)
	size := len(pp.pages)
	pp.mu.Unlock()

	if err := page.Close(); err != nil {
		log.Warn().Err(err).Msg("关闭标签页失败")
	}
	log.Debug().Msgf("销毁标签页,当前标签页数: %d", size)
}

func (pp *PagePool) removeLocked(page *rod.Page) {
	for i, p := range pp.pages {
		if p == page {
			pp.pages = append(pp.pages[:i], pp.pages[i+1:]...)
			return
		}
	}
}

// Close 关闭所有标签页
func (pp *PagePool) Close() error {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.closed {
		return nil
	}
	pp.closed = true
	close(pp.available)

	for _, page := range pp.pages {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Msg("关闭标签页失败")
		}
	}
	pp.pages = nil

	log.Debug().Msg("标签页池已关闭")
	return nil
}
