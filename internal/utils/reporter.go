package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/schollz/progressbar/v3"
)

// 报告文件名
const (
	ReportFile      = "crawl_report.json"
	SnapshotsFile   = "snapshots.json"
	FailedPagesFile = "failed_pages.json"
)

// Reporter 报告生成器
type Reporter struct {
	reportDir string
}

// NewReporter 创建报告生成器
func NewReporter(reportDir string) *Reporter {
	return &Reporter{reportDir: reportDir}
}

// Dir 报告目录
func (r *Reporter) Dir() string {
	return r.reportDir
}

// GenerateReport 写入爬取报告、快照列表和失败页面列表
func (r *Reporter) GenerateReport(report *models.CrawlReport) error {
	if err := os.MkdirAll(r.reportDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	snapshots := report.Snapshots
	if snapshots == nil {
		snapshots = []models.SnapshotRecord{}
	}
	failed := report.FailedPages
	if failed == nil {
		failed = []models.FailedPage{}
	}

	if err := r.saveJSONReport(ReportFile, report); err != nil {
		return err
	}
	if err := r.saveJSONReport(SnapshotsFile, snapshots); err != nil {
		return err
	}
	if err := r.saveJSONReport(FailedPagesFile, failed); err != nil {
		return err
	}

	Infof("报告已生成: %s", r.reportDir)
	return nil
}

func (r *Reporter) saveJSONReport(filename string, data interface{}) error {
	path := filepath.Join(r.reportDir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return nil
}

// NewProgressBar 创建进度条, max 未知时传 -1; visible 为false时输出被丢弃
func NewProgressBar(max int, description string, visible bool) *progressbar.ProgressBar {
	var out io.Writer = os.Stderr
	if !visible {
		out = io.Discard
	}
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
