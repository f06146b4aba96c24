package crawlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

// BrowserOptions 浏览器渲染器选项
type BrowserOptions struct {
	Headless    bool
	NavTimeout  time.Duration
	MaxPages    int    // 标签页上限, 与并发上限一致
	BinPath     string // 浏览器可执行文件, 为空时自动查找/下载
	ControlURL  string // 连接已有浏览器, 设置后不再启动新进程
	DisableImgs bool   // 不加载图片
}

// BrowserRenderer 基于go-rod的渲染器, 会执行页面脚本
type BrowserRenderer struct {
	launcher   *launcher.Launcher
	browser    *rod.Browser
	pool       *PagePool
	headers    models.HeaderProvider
	navTimeout time.Duration
}

// NewBrowserRenderer 启动浏览器并创建标签页池
func NewBrowserRenderer(opts BrowserOptions, monitor *ResourceMonitor, headers models.HeaderProvider) (*BrowserRenderer, error) {
	r := &BrowserRenderer{
		headers:    headers,
		navTimeout: opts.NavTimeout,
	}
	if r.navTimeout <= 0 {
		r.navTimeout = 30 * time.Second
	}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.BinPath != "" {
			l = l.Bin(opts.BinPath)
		}
		l = l.Set("ignore-certificate-errors")
		if opts.DisableImgs {
			l = l.Set("blink-settings", "imagesEnabled=false")
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: 启动浏览器失败: %v", ErrBrowserUnavailable, err)
		}
		r.launcher = l
		controlURL = u
	}

	r.browser = rod.New().ControlURL(controlURL)
	if err := r.browser.Connect(); err != nil {
		if r.launcher != nil {
			r.launcher.Kill()
		}
		return nil, fmt.Errorf("%w: 连接浏览器失败: %v", ErrBrowserUnavailable, err)
	}
	utils.Debugf("浏览器已启动: %s", controlURL)

	r.pool = NewPagePool(r.browser, monitor, opts.MaxPages)
	return r, nil
}

// Open 导航到 pageURL 并等待加载完成
func (r *BrowserRenderer) Open(ctx context.Context, pageURL string) (Document, error) {
	page, err := r.pool.AcquirePage(ctx)
	if err != nil {
		return nil, &NavigationError{URL: pageURL, Err: err}
	}

	doc := &browserDocument{pool: r.pool, root: page, page: page.Context(ctx)}

	if r.headers != nil {
		h, herr := r.headers.GetHeaders()
		if herr != nil {
			utils.Warnf("获取HTTP头部失败: %v", herr)
		} else if len(h) > 0 {
			restore, serr := doc.page.SetExtraHeaders(models.HeaderPairs(h))
			if serr != nil {
				utils.Warnf("设置HTTP头部失败: %v", serr)
			} else {
				doc.restore = restore
			}
		}
	}

	status, err := r.navigate(doc.page, pageURL)
	if err != nil {
		doc.Close()
		return nil, &NavigationError{URL: pageURL, Err: err}
	}
	if status != 0 && (status < 200 || status >= 300) {
		doc.Close()
		return nil, &NavigationError{URL: pageURL, Status: status}
	}
	return doc, nil
}

// navigate 返回主文档的HTTP状态码, 未捕获到时为0
func (r *BrowserRenderer) navigate(page *rod.Page, pageURL string) (int, error) {
	nav := page.Timeout(r.navTimeout)
	defer nav.CancelTimeout()

	statusCh := make(chan int, 1)
	wait := nav.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		// 重定向响应跳过, 取最终文档
		if e.Response.Status >= 300 && e.Response.Status < 400 {
			return false
		}
		statusCh <- e.Response.Status
		return true
	})
	go wait()

	if err := nav.Navigate(pageURL); err != nil {
		return 0, err
	}
	if err := nav.WaitLoad(); err != nil {
		return 0, err
	}

	select {
	case status := <-statusCh:
		return status, nil
	case <-time.After(time.Second):
		return 0, nil
	}
}

// Close 关闭标签页池和浏览器
func (r *BrowserRenderer) Close() error {
	if r.pool != nil {
		_ = r.pool.Close()
	}
	var err error
	if r.browser != nil {
		err = r.browser.Close()
	}
	if r.launcher != nil {
		r.launcher.Cleanup()
	}
	utils.Debugf("浏览器已关闭")
	return err
}

type browserDocument struct {
	pool    *PagePool
	root    *rod.Page
	page    *rod.Page
	restore func()
	closed  bool
}

const linksJS = `() => Array.from(document.querySelectorAll('a[href]'), a => a.href)`

const cleanJS = `() => {
	const hidden = [];
	document.querySelectorAll('body *').forEach(el => {
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') {
			hidden.push(el);
		}
	});
	hidden.forEach(el => el.remove());
	document.querySelectorAll('script').forEach(el => el.remove());
	return document.documentElement.innerHTML;
}`

func (d *browserDocument) Links() ([]string, error) {
	res, err := d.page.Evaluate(rod.Eval(linksJS))
	if err != nil {
		return nil, err
	}
	items := res.Value.Arr()
	links := make([]string, 0, len(items))
	for _, item := range items {
		if s := item.Str(); s != "" {
			links = append(links, s)
		}
	}
	return links, nil
}

func (d *browserDocument) CleanHTML() (string, error) {
	res, err := d.page.Evaluate(rod.Eval(cleanJS))
	if err != nil {
		return "", err
	}
	return CompactLines(res.Value.Str()), nil
}

func (d *browserDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.restore != nil {
		d.restore()
	}
	d.pool.ReleasePage(d.root)
	return nil
}
