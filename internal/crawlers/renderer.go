package crawlers

import "context"

// Renderer 将URL加载为可提取的文档
type Renderer interface {
	Open(ctx context.Context, pageURL string) (Document, error)
	Close() error
}

// Document 已加载的页面
// 调用顺序固定为 Links -> CleanHTML: 清理会修改文档
type Document interface {
	Links() ([]string, error)
	CleanHTML() (string, error)
	Close() error
}
