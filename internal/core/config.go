package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/RecoveryAshes/fragcrawl/internal/crawlers"
	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

// AppName 用于配置目录
const AppName = "fragcrawl"

// Config 应用程序配置
type Config struct {
	Crawl    models.CrawlConfig `mapstructure:"crawl"`
	Browser  BrowserConfig      `mapstructure:"browser"`
	Resource ResourceConfig     `mapstructure:"resource"`
	Logging  LoggingConfig      `mapstructure:"logging"`
	Output   OutputConfig       `mapstructure:"output"`
}

// BrowserConfig 浏览器配置
type BrowserConfig struct {
	BinPath       string `mapstructure:"bin_path"`       // 浏览器可执行文件
	ControlURL    string `mapstructure:"control_url"`    // 连接已运行的浏览器
	DisableImages bool   `mapstructure:"disable_images"` // 不加载图片
}

// ResourceConfig 资源限制(MB / %)
type ResourceConfig struct {
	SafetyReserveMemory int `mapstructure:"safety_reserve_memory"`
	SafetyThreshold     int `mapstructure:"safety_threshold"`
	CPULoadThreshold    int `mapstructure:"cpu_load_threshold"`
	MaxTabsLimit        int `mapstructure:"max_tabs_limit"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir     string `mapstructure:"base_dir"`     // 快照根目录
	ReportDir   string `mapstructure:"report_dir"`   // 报告目录, 相对路径基于快照根目录
	HeadersFile string `mapstructure:"headers_file"` // headers.yaml 路径
}

// LoadConfig 加载配置文件, 未指定路径时依次搜索
// ./configs, ., $XDG_CONFIG_HOME/fragcrawl, ~/.fragcrawl
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+AppName))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置失败: %w", err)}
	}
	cfg.applyResource()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.concurrency", models.DefaultConcurrency)
	v.SetDefault("crawl.wait_time", 3)
	v.SetDefault("crawl.nav_timeout", 30)
	v.SetDefault("crawl.poll_interval_ms", 1000)
	v.SetDefault("crawl.mode", string(models.ModeDynamic))
	v.SetDefault("crawl.order", string(models.OrderLIFO))
	v.SetDefault("crawl.ignore", []string{})
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.progress", false)

	v.SetDefault("browser.bin_path", "")
	v.SetDefault("browser.control_url", "")
	v.SetDefault("browser.disable_images", true)

	v.SetDefault("resource.safety_reserve_memory", 1024)
	v.SetDefault("resource.safety_threshold", 500)
	v.SetDefault("resource.cpu_load_threshold", 200)
	v.SetDefault("resource.max_tabs_limit", 16)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	v.SetDefault("output.base_dir", ".")
	v.SetDefault("output.report_dir", "reports")
	v.SetDefault("output.headers_file", "")
}

// applyResource 将资源配置同步到爬取配置(任务报告中会记录)
func (c *Config) applyResource() {
	c.Crawl.SafetyReserveMemory = c.Resource.SafetyReserveMemory
	c.Crawl.SafetyThreshold = c.Resource.SafetyThreshold
	c.Crawl.CPULoadThreshold = c.Resource.CPULoadThreshold
	c.Crawl.MaxTabsLimit = c.Resource.MaxTabsLimit
}

// Overrides 命令行显式设置的参数, nil 表示未设置
type Overrides struct {
	Concurrency    *int
	WaitTime       *int
	Mode           *string
	Order          *string
	Headless       *bool
	ShowProgress   *bool
	IgnorePatterns []string
	OutputDir      *string
	LogLevel       *string
}

// ApplyOverrides 命令行参数优先于配置文件
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Concurrency != nil {
		c.Crawl.Concurrency = *o.Concurrency
	}
	if o.WaitTime != nil {
		c.Crawl.WaitTime = *o.WaitTime
	}
	if o.Mode != nil {
		c.Crawl.Mode = models.CrawlMode(*o.Mode)
	}
	if o.Order != nil {
		c.Crawl.Order = models.QueueOrder(*o.Order)
	}
	if o.Headless != nil {
		c.Crawl.Headless = *o.Headless
	}
	if o.ShowProgress != nil {
		c.Crawl.ShowProgress = *o.ShowProgress
	}
	if len(o.IgnorePatterns) > 0 {
		c.Crawl.IgnorePatterns = append(c.Crawl.IgnorePatterns, o.IgnorePatterns...)
	}
	if o.OutputDir != nil {
		c.Output.BaseDir = *o.OutputDir
	}
	if o.LogLevel != nil {
		c.Logging.Level = *o.LogLevel
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return err
	}
	if c.Output.BaseDir == "" {
		return fmt.Errorf("输出目录不能为空")
	}
	return nil
}

// LogConfig 转换为日志配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// ResourceMonitorConfig 转换为资源监控配置(MB转字节)
func (c *Config) ResourceMonitorConfig() crawlers.ResourceMonitorConfig {
	const mb = 1024 * 1024
	rc := crawlers.DefaultResourceMonitorConfig()
	rc.SafetyReserveMemory = int64(c.Resource.SafetyReserveMemory) * mb
	rc.SafetyThreshold = int64(c.Resource.SafetyThreshold) * mb
	rc.CPULoadThreshold = c.Resource.CPULoadThreshold
	if c.Resource.MaxTabsLimit > 0 {
		rc.MaxTabsLimit = c.Resource.MaxTabsLimit
	}
	return rc
}
