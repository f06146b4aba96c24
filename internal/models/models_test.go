package models

import (
	"net/http"
	"reflect"
	"strings"
	"testing"
)

func validConfig() CrawlConfig {
	return CrawlConfig{
		Concurrency:  DefaultConcurrency,
		WaitTime:     3,
		NavTimeout:   30,
		PollInterval: 1000,
		Mode:         ModeDynamic,
		Order:        OrderLIFO,
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com/", false},
		{"带片段的URL", "https://example.com/#!/a/b", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
		{"无协议", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCrawlConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *CrawlConfig)
		wantErr bool
	}{
		{"有效配置", func(c *CrawlConfig) {}, false},
		{"并发数为0", func(c *CrawlConfig) { c.Concurrency = 0 }, true},
		{"并发数过大", func(c *CrawlConfig) { c.Concurrency = 17 }, true},
		{"等待时间为负", func(c *CrawlConfig) { c.WaitTime = -1 }, true},
		{"等待时间为0", func(c *CrawlConfig) { c.WaitTime = 0 }, false},
		{"导航超时为0", func(c *CrawlConfig) { c.NavTimeout = 0 }, true},
		{"检测间隔过小", func(c *CrawlConfig) { c.PollInterval = 1 }, true},
		{"静态模式", func(c *CrawlConfig) { c.Mode = ModeStatic }, false},
		{"未知模式", func(c *CrawlConfig) { c.Mode = "all" }, true},
		{"FIFO顺序", func(c *CrawlConfig) { c.Order = OrderFIFO }, false},
		{"未知顺序", func(c *CrawlConfig) { c.Order = "random" }, true},
		{"有效忽略规则", func(c *CrawlConfig) { c.IgnorePatterns = []string{`/some/url/\d*`} }, false},
		{"无效忽略规则", func(c *CrawlConfig) { c.IgnorePatterns = []string{`(`} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewCrawlTask(t *testing.T) {
	task, err := NewCrawlTask("https://example.com/", "out", validConfig())
	if err != nil {
		t.Fatalf("NewCrawlTask() error = %v", err)
	}

	if task.ID == "" {
		t.Error("任务ID不应为空")
	}
	if task.Domain != "example.com" {
		t.Errorf("Domain = %v, want %v", task.Domain, "example.com")
	}
	if task.Status != TaskStatusPending {
		t.Errorf("Status = %v, want %v", task.Status, TaskStatusPending)
	}

	task.MarkStarted()
	if task.Status != TaskStatusRunning || task.StartedAt == nil {
		t.Errorf("MarkStarted后状态错误: %v", task.Status)
	}
	task.MarkFinished(TaskStatusCompleted, nil)
	if task.Status != TaskStatusCompleted || task.CompletedAt == nil {
		t.Errorf("MarkFinished后状态错误: %v", task.Status)
	}
	if task.ErrorMessage != "" {
		t.Errorf("无错误时不应记录错误信息: %q", task.ErrorMessage)
	}

	if _, err := NewCrawlTask("https://example.com/", "out", CrawlConfig{}); err == nil {
		t.Error("零值配置应该验证失败")
	}
}

func TestCliHeaders_Parse(t *testing.T) {
	t.Run("正常解析并去除空格", func(t *testing.T) {
		h, err := CliHeaders{"  User-Agent  :  Bot/1.0 ", "X-Token: a:b"}.Parse()
		if err != nil {
			t.Fatalf("Parse() error = %v", err)
		}
		if got := h.Get("User-Agent"); got != "Bot/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		if got := h.Get("X-Token"); got != "a:b" {
			t.Errorf("值中的冒号应该保留, 得到 %q", got)
		}
	})

	t.Run("缺少冒号", func(t *testing.T) {
		_, err := CliHeaders{"InvalidHeader"}.Parse()
		if err == nil || !strings.Contains(err.Error(), "第1项") {
			t.Errorf("期望包含位置的错误, 得到 %v", err)
		}
	})

	t.Run("空名称", func(t *testing.T) {
		if _, err := (CliHeaders{": value"}).Parse(); err == nil {
			t.Error("空名称应该报错")
		}
	})
}

func TestHeaderPairs(t *testing.T) {
	h := http.Header{}
	h.Set("X-B", "2")
	h.Set("X-A", "1")
	h["X-Empty"] = nil

	got := HeaderPairs(h)
	want := []string{"X-A", "1", "X-B", "2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("HeaderPairs() = %v, want %v", got, want)
	}
}

func TestCrawlReport_JSON(t *testing.T) {
	report := &CrawlReport{
		TaskID:   "task-123",
		StartURL: "https://example.com/",
		Mode:     ModeStatic,
		Stats:    TaskStats{Snapshots: 3, FailedPages: 1},
		Snapshots: []SnapshotRecord{
			{URL: "https://example.com/#!/a", FilePath: "_escaped_fragment_/a/index.html"},
		},
		FailedPages: []FailedPage{
			{URL: "https://example.com/#!/b", ErrorType: FailureNavigation},
		},
	}

	data, err := report.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var decoded CrawlReport
	if err := decoded.FromJSON(data); err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if decoded.Stats.Snapshots != 3 {
		t.Errorf("Snapshots不匹配: got %v", decoded.Stats.Snapshots)
	}
	if len(decoded.FailedPages) != 1 || decoded.FailedPages[0].ErrorType != FailureNavigation {
		t.Errorf("FailedPages不匹配: %+v", decoded.FailedPages)
	}
}
