package models

import (
	"encoding/json"
	"time"
)

// SnapshotFileName 每个快照目录中的文件名
const SnapshotFileName = "index.html"

// FailureType 页面失败类型
type FailureType string

const (
	FailureNavigation FailureType = "navigation" // 渲染器无法加载页面
	FailureExtraction FailureType = "extraction" // 链接/内容提取失败
	FailurePersist    FailureType = "persist"    // 快照写入失败
	FailureCancelled  FailureType = "cancelled"  // 任务取消,未派发
)

// SnapshotRecord 已写入的快照
type SnapshotRecord struct {
	URL      string    `json:"url"`       // 页面URL
	FilePath string    `json:"file_path"` // index.html路径
	Size     int64     `json:"size"`      // 字节数
	Hash     string    `json:"hash"`      // SHA-256
	SavedAt  time.Time `json:"saved_at"`  // 写入时间
}

// FailedPage 失败页面
type FailedPage struct {
	URL       string      `json:"url"`
	ErrorType FailureType `json:"error_type"`
	ErrorMsg  string      `json:"error_msg"`
}

// ToJSON 序列化为JSON
func (s *SnapshotRecord) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
