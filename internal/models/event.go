package models

// LinkEvent 页面中发现的一个链接
// 渲染流水线为每个<a>目标发布一个事件,由发现过滤器消费
type LinkEvent struct {
	// URL 链接的绝对地址
	URL string

	// SourceURL 发现该链接的页面(用于调试日志)
	SourceURL string
}
