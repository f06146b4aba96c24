package crawlers

import (
	"fmt"
	"path"
	"strings"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
)

const (
	// FragmentMarker 片段路由标记
	FragmentMarker = "#!/"

	// EscapedFragmentRoot 快照目录前缀
	EscapedFragmentRoot = "_escaped_fragment_"
)

// MapToPath 将页面URL映射为快照文件的相对路径(斜杠分隔)
//
//	http://example.com/#!/some/cool/page  ->  _escaped_fragment_/some/cool/page/index.html
//	http://example.com/x#!/               ->  _escaped_fragment_/x/index.html
//
// 结果只取决于(pageURL, startURL), 重复爬取会覆盖而不是产生新文件。
// 路由中含 .. 段的URL返回 ErrOutOfScope, 结果总在 _escaped_fragment_ 之下。
// 只编码 & (爬虫请求 ?_escaped_fragment_= 时会把它编码成 %26), 其他字符保持原样。
func MapToPath(pageURL, startURL string) (string, error) {
	if !strings.HasPrefix(pageURL, startURL) {
		return "", fmt.Errorf("%w: %s", ErrOutOfScope, pageURL)
	}

	suffix := pageURL[len(startURL):]
	routePrefix, routeParam, _ := strings.Cut(suffix, FragmentMarker)
	if hasDotDot(routePrefix) || hasDotDot(routeParam) {
		return "", fmt.Errorf("%w: 路由包含 .. : %s", ErrOutOfScope, pageURL)
	}

	dir := path.Join(EscapedFragmentRoot, routePrefix, routeParam)
	return path.Join(EncodeForBot(dir), models.SnapshotFileName), nil
}

// hasDotDot 是否含有 .. 路径段
func hasDotDot(route string) bool {
	for _, seg := range strings.Split(route, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

// EncodeForBot 按爬虫的方式编码片段中的字符: & -> %26
func EncodeForBot(s string) string {
	return strings.ReplaceAll(s, "&", "%26")
}
