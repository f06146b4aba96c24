package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
)

func TestReadURLsFromFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("跳过注释和无效行", func(t *testing.T) {
		path := filepath.Join(dir, "urls.txt")
		content := "# 目标列表\n\nhttp://a.example.com/\n  https://b.example.com/#!/start  \nnot-a-url\nftp://c.example.com/\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		urls, err := ReadURLsFromFile(path)
		if err != nil {
			t.Fatalf("ReadURLsFromFile() error = %v", err)
		}
		want := []string{"http://a.example.com/", "https://b.example.com/#!/start"}
		if len(urls) != len(want) || urls[0] != want[0] || urls[1] != want[1] {
			t.Errorf("ReadURLsFromFile() = %v, want %v", urls, want)
		}
	})

	t.Run("没有有效URL", func(t *testing.T) {
		path := filepath.Join(dir, "empty.txt")
		_ = os.WriteFile(path, []byte("# nothing\n"), 0644)
		if _, err := ReadURLsFromFile(path); err == nil {
			t.Error("期望返回错误")
		}
	})

	t.Run("文件不存在", func(t *testing.T) {
		if _, err := ReadURLsFromFile(filepath.Join(dir, "missing.txt")); err == nil {
			t.Error("期望返回错误")
		}
	})
}

func TestReporter_GenerateReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r := NewReporter(dir)

	report := &models.CrawlReport{
		TaskID:    "task-1",
		StartURL:  "http://example.com/",
		Status:    models.TaskStatusCompleted,
		StartTime: time.Now(),
		EndTime:   time.Now(),
		Stats:     models.TaskStats{Snapshots: 1},
		Snapshots: []models.SnapshotRecord{
			{URL: "http://example.com/", FilePath: "_escaped_fragment_/index.html"},
		},
	}
	if err := r.GenerateReport(report); err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	for _, name := range []string{ReportFile, SnapshotsFile, FailedPagesFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s 未生成: %v", name, err)
		}
	}

	data, _ := os.ReadFile(filepath.Join(dir, FailedPagesFile))
	var failed []models.FailedPage
	if err := json.Unmarshal(data, &failed); err != nil || failed == nil || len(failed) != 0 {
		t.Errorf("没有失败页面时应写入空数组, 得到 %s", data)
	}
}
