package main

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/fragcrawl/internal/core"
	"github.com/RecoveryAshes/fragcrawl/internal/crawlers"
	"github.com/RecoveryAshes/fragcrawl/internal/models"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查运行环境(浏览器、系统资源)",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("==============================================")
		fmt.Println("  fragcrawl 环境检查")
		fmt.Println("==============================================")

		fmt.Printf("✅ Go版本: %s\n", runtime.Version())
		fmt.Printf("✅ 操作系统: %s/%s, CPU核心: %d\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())

		browserOK := checkBrowser(appConfig.Browser)

		rm := crawlers.NewResourceMonitor(appConfig.ResourceMonitorConfig())
		rm.Sample()
		if ok, reason := rm.CheckResourceAvailability(); ok {
			fmt.Println("✅ 系统资源充足")
		} else {
			fmt.Printf("⚠️  %s\n", reason)
		}
		fmt.Printf("ℹ️  建议并发上限: %d (配置值: %d)\n",
			rm.EffectiveConcurrency(appConfig.Crawl.Concurrency), appConfig.Crawl.Concurrency)

		fmt.Println("==============================================")
		if !browserOK && appConfig.Crawl.Mode == models.ModeDynamic {
			return fmt.Errorf("dynamic 模式需要可用的浏览器, 可改用 --mode static")
		}
		fmt.Println("✅ 环境检查通过")
		return nil
	},
}

func checkBrowser(cfg core.BrowserConfig) bool {
	if cfg.ControlURL != "" {
		fmt.Printf("✅ 使用已运行的浏览器: %s\n", cfg.ControlURL)
		return true
	}
	if cfg.BinPath != "" {
		fmt.Printf("✅ 浏览器路径(配置): %s\n", cfg.BinPath)
		return true
	}
	if path, found := launcher.LookPath(); found {
		fmt.Printf("✅ 找到本地浏览器: %s\n", path)
		return true
	}
	fmt.Println("⚠️  未找到本地Chrome/Chromium, 首次运行 dynamic 模式时会自动下载")
	return probeDownload()
}

// probeDownload 检查浏览器下载源是否可达
func probeDownload() bool {
	b := launcher.NewBrowser()
	start := time.Now()
	path, err := b.Get()
	if err != nil {
		fmt.Printf("❌ 下载浏览器失败: %v\n", err)
		return false
	}
	fmt.Printf("✅ 浏览器已就绪: %s (%.1f秒)\n", path, time.Since(start).Seconds())
	return true
}
