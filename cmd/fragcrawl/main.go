package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/fragcrawl/internal/core"
	"github.com/RecoveryAshes/fragcrawl/internal/models"
	"github.com/RecoveryAshes/fragcrawl/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// exitInterrupted 收到中断信号后的退出码
const exitInterrupted = 130

var errInterrupted = errors.New("爬取被中断")

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string
	validateConfig bool

	// 爬取参数
	urlFile        string
	ignorePatterns []string
	concurrency    int
	waitTime       int
	mode           string
	order          string
	headless       bool
	showProgress   bool
	outputDir      string

	// 批量处理参数
	batchDelay      int
	continueOnError bool
)

// appConfig 在 PersistentPreRunE 中加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "fragcrawl [flags] <start-url>",
	Short: "#!/ 片段路由单页应用的静态快照爬虫",
	Long: `fragcrawl - 为使用 #!/ 片段路由的单页应用生成静态快照

从入口URL开始渲染页面, 发现所有以入口URL为前缀且包含 #!/ 的链接,
把每个页面清理后的HTML写入 _escaped_fragment_/<路由>/index.html,
供搜索引擎通过 ?_escaped_fragment_= 请求。

示例:
  # 爬取整个站点, 忽略匹配的URL
  fragcrawl -i '/some/url/\d*' http://example.com/

  # 使用静态模式(不执行脚本)并按广度优先顺序
  fragcrawl --mode static --order fifo http://example.com/

  # 批量处理, 每个目标写入 <output>/<host>
  fragcrawl -f urls.txt -o snapshots

  # 自定义请求头并验证配置
  fragcrawl -H "Authorization: Bearer token" --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		appConfig = cfg

		logConfig := cfg.LogConfig()
		if logLevel != "" {
			logConfig.Level = logLevel
		} else if verbose {
			logConfig.Level = "debug"
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Debug("详细模式已启用")
		}
		return nil
	},
	RunE: runRoot,
}

func runRoot(cmd *cobra.Command, args []string) error {
	headerManager, err := core.NewHeaderManager(appConfig.Output.HeadersFile, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}

	if validateConfig {
		return runValidateConfig(headerManager)
	}

	startURL := ""
	if len(args) > 0 {
		startURL = args[0]
	}
	if startURL == "" && urlFile == "" {
		return cmd.Help()
	}
	if err := ValidateFlags(startURL, urlFile); err != nil {
		return err
	}

	appConfig.ApplyOverrides(buildOverrides(cmd))
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}
	if _, err := headerManager.GetHeaders(); err != nil {
		return fmt.Errorf("HTTP头部配置无效: %w", err)
	}
	utils.Debugf("HTTP头部: %v", headerManager.GetSafeHeaders())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if urlFile != "" {
		return runBatch(ctx, headerManager)
	}
	return runSingle(ctx, startURL, headerManager)
}

func runSingle(ctx context.Context, startURL string, hp models.HeaderProvider) error {
	crawler, err := core.NewCrawler(startURL, appConfig, appConfig.Output.BaseDir, hp)
	if err != nil {
		return fmt.Errorf("创建爬取器失败: %w", err)
	}

	report, err := crawler.Crawl(ctx)
	if err != nil {
		return fmt.Errorf("爬取失败: %w", err)
	}

	s := report.Stats
	fmt.Println("\n==================================================")
	fmt.Println("📊 爬取统计")
	fmt.Println("==================================================")
	fmt.Printf("🆔 任务ID: %s\n", crawler.Task().ID)
	fmt.Printf("📁 快照目录: %s\n", report.OutputDir)
	fmt.Printf("✅ 发现URL数: %d\n", s.DiscoveredURLs)
	fmt.Printf("✅ 写入快照: %d\n", s.Snapshots)
	fmt.Printf("❌ 失败页面: %d\n", s.FailedPages)
	fmt.Printf("⏸️  未处理(取消): %d\n", s.CancelledURLs)
	fmt.Printf("📦 总大小: %.2f KB\n", float64(s.TotalSize)/1024)
	fmt.Printf("⏱️  总耗时: %.2f秒\n", s.Duration)
	fmt.Printf("📁 报告目录: %s\n", crawler.ReportDir())
	fmt.Println("==================================================")

	if report.Status == models.TaskStatusCancelled {
		return errInterrupted
	}
	utils.Info("✨ 爬取任务完成!")
	return nil
}

func runBatch(ctx context.Context, hp models.HeaderProvider) error {
	urls, err := utils.ReadURLsFromFile(urlFile)
	if err != nil {
		return fmt.Errorf("读取URL文件失败: %w", err)
	}

	batchCrawler := core.NewBatchCrawler(appConfig, batchDelay, continueOnError, hp)
	if _, err := batchCrawler.CrawlBatch(ctx, urls); err != nil {
		return fmt.Errorf("批量爬取失败: %w", err)
	}
	if ctx.Err() != nil {
		return errInterrupted
	}

	utils.Info("✨ 批量爬取任务完成!")
	return nil
}

func runValidateConfig(hm *core.HeaderManager) error {
	utils.Info("🔍 验证HTTP头部配置...")
	if err := hm.LoadConfig(); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	safeHeaders := hm.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for _, name := range sortedKeys(safeHeaders) {
		utils.Infof("  %s: %s", name, safeHeaders[name])
	}
	return nil
}

// buildOverrides 只收集用户显式设置的参数, 其余沿用配置文件
func buildOverrides(cmd *cobra.Command) core.Overrides {
	var o core.Overrides
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		o.Concurrency = &concurrency
	}
	if flags.Changed("wait") {
		o.WaitTime = &waitTime
	}
	if flags.Changed("mode") {
		o.Mode = &mode
	}
	if flags.Changed("order") {
		o.Order = &order
	}
	if flags.Changed("headless") {
		o.Headless = &headless
	}
	if flags.Changed("progress") {
		o.ShowProgress = &showProgress
	}
	if flags.Changed("output") {
		o.OutputDir = &outputDir
	}
	if flags.Changed("log-level") {
		o.LogLevel = &logLevel
	}
	o.IgnorePatterns = ignorePatterns
	return o
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fragcrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 爬取参数
	rootCmd.Flags().StringArrayVarP(&ignorePatterns, "ignore", "i", []string{}, "忽略匹配该正则的URL,可多次指定")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含入口URL列表的文件路径")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", models.DefaultConcurrency, "并发渲染上限 (1-16)")
	rootCmd.Flags().IntVarP(&waitTime, "wait", "w", 3, "页面加载后等待时间(秒)")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", string(models.ModeDynamic), "渲染模式 (dynamic|static)")
	rootCmd.Flags().StringVar(&order, "order", string(models.OrderLIFO), "出队顺序 (lifo|fifo)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().BoolVar(&showProgress, "progress", false, "显示进度条")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", ".", "快照输出目录")

	// 批量处理参数
	rootCmd.Flags().IntVar(&batchDelay, "batch-delay", 1, "批量处理URL间延迟(秒)")
	rootCmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "遇到错误继续处理")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errInterrupted) {
			utils.Warn("爬取被中断, 已写入的快照和报告保留")
			os.Exit(exitInterrupted)
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
