package core

import (
	"net/http"
	"sync"

	"github.com/RecoveryAshes/fragcrawl/internal/config"
	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

// DefaultUserAgent 默认User-Agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// HeaderManager 合并三层请求头: 默认 < headers.yaml < 命令行
// 实现 models.HeaderProvider, 可被多个渲染器并发调用
type HeaderManager struct {
	defaults http.Header
	config   http.Header
	cli      http.Header

	loader    *config.HeaderConfigLoader
	validator *utils.HeaderValidator
	redactor  *utils.HeaderRedactor

	once   sync.Once
	merged http.Header
	err    error
}

// NewHeaderManager configFile 为空时使用默认路径; cliHeaders 格式为 "Name: Value"
func NewHeaderManager(configFile string, cliHeaders []string) (*HeaderManager, error) {
	cli, err := models.CliHeaders(cliHeaders).Parse()
	if err != nil {
		return nil, err
	}
	return &HeaderManager{
		defaults:  defaultHeaders(),
		config:    make(http.Header),
		cli:       cli,
		loader:    config.NewHeaderConfigLoader(configFile),
		validator: utils.NewHeaderValidator(),
		redactor:  utils.NewHeaderRedactor(),
	}, nil
}

func defaultHeaders() http.Header {
	return http.Header{
		"User-Agent": []string{DefaultUserAgent},
		"Accept":     []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
	}
}

// LoadConfig 读取 headers.yaml
func (hm *HeaderManager) LoadConfig() error {
	cfg, err := hm.loader.LoadConfig()
	if err != nil {
		return err
	}
	loaded := make(http.Header, len(cfg.Headers))
	for name, value := range cfg.Headers {
		loaded.Set(name, value)
	}
	hm.config = loaded

	if len(loaded) > 0 {
		utils.Debugf("加载了%d个HTTP头部配置: %s", len(loaded), hm.redactor.RedactToString(loaded))
	}
	return nil
}

// Validate 依次验证 默认 -> 配置 -> 命令行
func (hm *HeaderManager) Validate() error {
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		if err := hm.validator.Validate(layer); err != nil {
			return err
		}
	}
	return nil
}

// GetMergedHeaders 按优先级合并
func (hm *HeaderManager) GetMergedHeaders() http.Header {
	result := make(http.Header)
	for _, layer := range []http.Header{hm.defaults, hm.config, hm.cli} {
		for name, values := range layer {
			result[name] = values
		}
	}
	return result
}

// GetSafeHeaders 脱敏后的合并结果, 用于日志
func (hm *HeaderManager) GetSafeHeaders() map[string]string {
	return hm.redactor.Redact(hm.GetMergedHeaders())
}

// GetHeaders 实现 models.HeaderProvider
// 首次调用时加载并验证, 之后返回同一结果的副本
func (hm *HeaderManager) GetHeaders() (http.Header, error) {
	hm.once.Do(func() {
		if err := hm.LoadConfig(); err != nil {
			hm.err = err
			return
		}
		if err := hm.Validate(); err != nil {
			hm.err = err
			return
		}
		hm.merged = hm.GetMergedHeaders()
	})
	if hm.err != nil {
		return nil, hm.err
	}
	return hm.merged.Clone(), nil
}
