package core

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
)

func headersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "headers.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHeaderManager_Precedence(t *testing.T) {
	path := headersFile(t, "headers:\n  User-Agent: \"FromConfig/1.0\"\n  X-Config: \"c\"\n  X-Shared: \"config\"\n")
	hm, err := NewHeaderManager(path, []string{"X-Shared: cli", "X-Cli: 1"})
	if err != nil {
		t.Fatalf("NewHeaderManager() error = %v", err)
	}

	h, err := hm.GetHeaders()
	if err != nil {
		t.Fatalf("GetHeaders() error = %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"配置覆盖默认", "User-Agent", "FromConfig/1.0"},
		{"命令行覆盖配置", "X-Shared", "cli"},
		{"仅配置", "X-Config", "c"},
		{"仅命令行", "X-Cli", "1"},
		{"默认值保留", "Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Get(tt.header); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestHeaderManager_Errors(t *testing.T) {
	t.Run("命令行格式错误", func(t *testing.T) {
		if _, err := NewHeaderManager("", []string{"NoColon"}); err == nil {
			t.Error("期望返回错误")
		}
	})

	t.Run("禁止的头部", func(t *testing.T) {
		hm, err := NewHeaderManager(headersFile(t, ""), []string{"Host: evil.com"})
		if err != nil {
			t.Fatalf("NewHeaderManager() error = %v", err)
		}
		_, err = hm.GetHeaders()
		var ve *models.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("期望 ValidationError, 得到 %v", err)
		}
	})
}

func TestHeaderManager_GetSafeHeaders(t *testing.T) {
	hm, err := NewHeaderManager(headersFile(t, ""), []string{"Authorization: Bearer secret-token"})
	if err != nil {
		t.Fatalf("NewHeaderManager() error = %v", err)
	}
	if got := hm.GetSafeHeaders()["Authorization"]; got != "Bearer ***" {
		t.Errorf("Authorization = %q, 应被脱敏", got)
	}
}

func TestHeaderManager_ConcurrentGetHeaders(t *testing.T) {
	hm, err := NewHeaderManager(headersFile(t, "headers:\n  X-A: a\n"), nil)
	if err != nil {
		t.Fatalf("NewHeaderManager() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := hm.GetHeaders()
			if err != nil || h.Get("X-A") != "a" {
				t.Errorf("GetHeaders() = %v, %v", h, err)
			}
			h.Set("X-A", "mutated")
		}()
	}
	wg.Wait()

	h, _ := hm.GetHeaders()
	if h.Get("X-A") != "a" {
		t.Error("调用方修改返回值不应影响后续结果")
	}
}
