package models

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// HeaderConfig headers.yaml的结构
type HeaderConfig struct {
	// Headers 自定义请求头, 如 "User-Agent" -> "Mozilla/5.0..."
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}

// CliHeaders 命令行 -H 传入的头部, 每项格式为 "Name: Value"
type CliHeaders []string

// Parse 解析为 http.Header
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, err := parseHeaderString(s)
		if err != nil {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: %w", i+1, err)
		}
		result.Set(name, value)
	}
	return result, nil
}

func parseHeaderString(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, ":")
	if !ok {
		return "", "", fmt.Errorf("缺少冒号分隔符,应为 'Name: Value'")
	}

	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return "", "", fmt.Errorf("头部名称不能为空")
	}
	return name, value, nil
}

// HeaderPairs 将头部展开为 [name, value, name, value...]
// 浏览器渲染器用它设置额外请求头; 按名称排序保证顺序稳定
func HeaderPairs(h http.Header) []string {
	names := make([]string, 0, len(h))
	for name, values := range h {
		if len(values) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names)*2)
	for _, name := range names {
		pairs = append(pairs, name, h.Get(name))
	}
	return pairs
}

// HeaderProvider 请求头提供者
// 渲染器在每次请求页面前调用, 返回值已按 默认 < 配置文件 < 命令行 合并
type HeaderProvider interface {
	GetHeaders() (http.Header, error)
}

// ValidationError 头部验证错误
type ValidationError struct {
	Field      string // "name" 或 "value"
	HeaderName string
	Reason     string
	Suggestion string // 可选
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	FilePath string
	Cause    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Is/As
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
