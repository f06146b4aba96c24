package crawlers

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ParseDocument 解析HTML
func ParseDocument(r io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// ExtractLinks 返回所有 a[href] 相对 base 解析后的绝对地址
// 只有片段的链接(#!/...)同样会被解析
func ExtractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, base.ResolveReference(ref).String())
	})
	return links
}

// CleanDocument 移除隐藏元素和脚本, 返回 <html> 的内部标记(已去除空行)
func CleanDocument(doc *goquery.Document) (string, error) {
	doc.Find("[hidden], [style]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if _, ok := s.Attr("hidden"); ok {
			return true
		}
		style, _ := s.Attr("style")
		return isHiddenStyle(style)
	}).Remove()
	doc.Find("script").Remove()

	markup, err := doc.Find("html").First().Html()
	if err != nil {
		return "", err
	}
	return CompactLines(markup), nil
}

func isHiddenStyle(style string) bool {
	compact := strings.ToLower(strings.Join(strings.Fields(style), ""))
	for _, decl := range strings.Split(compact, ";") {
		decl = strings.TrimSuffix(decl, "!important")
		if decl == "display:none" || decl == "visibility:hidden" {
			return true
		}
	}
	return false
}

// CompactLines 去除空白行
func CompactLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
