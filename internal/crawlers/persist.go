package crawlers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotWriter 将快照写入输出目录
type SnapshotWriter struct {
	root string
}

// NewSnapshotWriter 创建写入器, root 不存在时会被创建
func NewSnapshotWriter(root string) (*SnapshotWriter, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("解析输出目录失败: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, &PersistError{Path: abs, Err: err}
	}
	return &SnapshotWriter{root: abs}, nil
}

// Root 输出根目录(绝对路径)
func (w *SnapshotWriter) Root() string {
	return w.root
}

// Write 写入 relPath(斜杠分隔), 已存在的文件会被覆盖
// 返回写入文件的完整路径
func (w *SnapshotWriter) Write(relPath, markup string) (string, error) {
	full := filepath.Join(w.root, filepath.FromSlash(relPath))

	rel, err := filepath.Rel(w.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &PersistError{Path: relPath, Err: fmt.Errorf("路径超出输出目录")}
	}

	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", &PersistError{Path: full, Err: err}
	}
	if err := os.WriteFile(full, []byte(markup), 0644); err != nil {
		return "", &PersistError{Path: full, Err: err}
	}
	return full, nil
}
