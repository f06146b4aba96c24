package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
)

func TestHeaderConfigLoader_LoadConfig(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content *string
		want    map[string]string
		wantErr bool
	}{
		{
			name:    "文件不存在时生成模板",
			content: nil,
			want:    map[string]string{"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8"},
		},
		{
			name:    "空文件",
			content: strPtr(""),
			want:    map[string]string{},
		},
		{
			name:    "名称还原为规范形式",
			content: strPtr("headers:\n  user-agent: \"Bot/1.0\"\n  X-API-KEY: abc\n"),
			want:    map[string]string{"User-Agent": "Bot/1.0", "X-Api-Key": "abc"},
		},
		{
			name:    "格式错误",
			content: strPtr("headers: [unclosed\n"),
			wantErr: true,
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "case", string(rune('a'+i)), "headers.yaml")
			if tt.content != nil {
				_ = os.MkdirAll(filepath.Dir(path), 0755)
				_ = os.WriteFile(path, []byte(*tt.content), 0644)
			}

			cfg, err := NewHeaderConfigLoader(path).LoadConfig()
			if tt.wantErr {
				var ce *models.ConfigError
				if !errors.As(err, &ce) {
					t.Errorf("期望 ConfigError, 得到 %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if len(cfg.Headers) != len(tt.want) {
				t.Fatalf("Headers = %v, want %v", cfg.Headers, tt.want)
			}
			for k, v := range tt.want {
				if cfg.Headers[k] != v {
					t.Errorf("Headers[%q] = %q, want %q", k, cfg.Headers[k], v)
				}
			}
		})
	}
}

func TestHeaderConfigLoader_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "headers.yaml")
	big := "headers:\n  X-Big: \"" + strings.Repeat("a", MaxConfigFileSize) + "\"\n"
	_ = os.WriteFile(path, []byte(big), 0644)

	if _, err := NewHeaderConfigLoader(path).LoadConfig(); err == nil {
		t.Error("超过大小限制应报错")
	}
}

func strPtr(s string) *string { return &s }
