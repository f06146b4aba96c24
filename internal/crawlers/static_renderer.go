package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

// StaticRenderer 仅通过HTTP获取页面, 不执行脚本
// 适用于服务端渲染的站点
type StaticRenderer struct {
	collector *colly.Collector
	headers   models.HeaderProvider
}

// NewStaticRenderer 创建静态渲染器
func NewStaticRenderer(timeout time.Duration, headers models.HeaderProvider) *StaticRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.SetClient(&http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Timeout: timeout,
	})

	return &StaticRenderer{collector: c, headers: headers}
}

// Open 抓取并解析页面
func (r *StaticRenderer) Open(ctx context.Context, pageURL string) (Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &NavigationError{URL: pageURL, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &NavigationError{URL: pageURL, Err: err}
	}

	var (
		body     []byte
		received bool
		status   int
		reqErr   error
	)

	c := r.collector.Clone()
	c.OnRequest(func(req *colly.Request) {
		if ctx.Err() != nil {
			req.Abort()
			return
		}
		if r.headers == nil {
			return
		}
		h, err := r.headers.GetHeaders()
		if err != nil {
			utils.Warnf("获取HTTP头部失败: %v", err)
			return
		}
		for name := range h {
			req.Headers.Set(name, h.Get(name))
		}
	})
	c.OnResponse(func(resp *colly.Response) {
		status = resp.StatusCode
		decoded, err := decompressResponse(resp.Headers.Get("Content-Encoding"), resp.Body)
		if err != nil {
			reqErr = err
			return
		}
		body = decoded
		received = true
	})
	c.OnError(func(resp *colly.Response, err error) {
		if resp != nil {
			status = resp.StatusCode
		}
		reqErr = err
	})

	if err := c.Visit(pageURL); err != nil && reqErr == nil {
		reqErr = err
	}

	if status != 0 && (status < 200 || status >= 300) {
		return nil, &NavigationError{URL: pageURL, Status: status, Err: reqErr}
	}
	if reqErr != nil {
		return nil, &NavigationError{URL: pageURL, Status: status, Err: reqErr}
	}
	if !received {
		return nil, &NavigationError{URL: pageURL, Err: fmt.Errorf("未收到响应")}
	}

	doc, err := ParseDocument(bytes.NewReader(body))
	if err != nil {
		return nil, &ExtractionError{URL: pageURL, Stage: "parse", Err: err}
	}
	return &staticDocument{doc: doc, base: base}, nil
}

// Close 无需释放资源
func (r *StaticRenderer) Close() error {
	return nil
}

type staticDocument struct {
	doc  *goquery.Document
	base *url.URL
}

func (d *staticDocument) Links() ([]string, error) {
	return ExtractLinks(d.doc, d.base), nil
}

func (d *staticDocument) CleanHTML() (string, error) {
	return CleanDocument(d.doc)
}

func (d *staticDocument) Close() error {
	return nil
}

// decompressResponse 根据Content-Encoding解压响应体
// colly 已经处理过的gzip响应不会再解压一次
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()
		return readAll(reader, "gzip")

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		return readAll(reader, "deflate")

	case "br":
		return readAll(brotli.NewReader(bytes.NewReader(body)), "brotli")

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

func readAll(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s读取失败: %w", name, err)
	}
	return data, nil
}
