package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/RecoveryAshes/fragcrawl/internal/models"
)

const (
	// DefaultHeadersFile 默认头部配置文件
	DefaultHeadersFile = "configs/headers.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed headers_template.yaml
var headersTemplate string

// HeaderConfigLoader 加载 headers.yaml
type HeaderConfigLoader struct {
	path string
}

// NewHeaderConfigLoader path为空时使用默认路径
func NewHeaderConfigLoader(path string) *HeaderConfigLoader {
	if path == "" {
		path = DefaultHeadersFile
	}
	return &HeaderConfigLoader{path: path}
}

// Path 配置文件路径
func (l *HeaderConfigLoader) Path() string {
	return l.path
}

// EnsureConfigExists 文件不存在时写入模板
func (l *HeaderConfigLoader) EnsureConfigExists() error {
	if _, err := os.Stat(l.path); !os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("无法创建配置目录: %w", err)
	}
	if err := os.WriteFile(l.path, []byte(headersTemplate), 0644); err != nil {
		return fmt.Errorf("无法生成配置文件 [%s]: %w", l.path, err)
	}
	return nil
}

// LoadConfig 读取并解析头部配置, 文件不存在时先生成模板
func (l *HeaderConfigLoader) LoadConfig() (*models.HeaderConfig, error) {
	if err := l.EnsureConfigExists(); err != nil {
		return nil, err
	}

	info, err := os.Stat(l.path)
	if err != nil {
		return nil, &models.ConfigError{FilePath: l.path, Cause: err}
	}
	if info.Size() > MaxConfigFileSize {
		return nil, &models.ConfigError{
			FilePath: l.path,
			Cause:    fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}

	cfg := &models.HeaderConfig{Headers: make(map[string]string)}
	if info.Size() == 0 {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(l.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &models.ConfigError{FilePath: l.path, Cause: err}
	}

	// viper 会把键名转成小写, 这里直接读取原始映射再按规范形式还原
	for name, value := range v.GetStringMapString("headers") {
		cfg.Headers[canonicalName(name)] = value
	}
	return cfg, nil
}

// canonicalName user-agent -> User-Agent
func canonicalName(name string) string {
	parts := strings.Split(strings.TrimSpace(name), "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
		}
	}
	return strings.Join(parts, "-")
}
