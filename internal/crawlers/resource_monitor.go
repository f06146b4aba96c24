package crawlers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const mb = 1024 * 1024

// ResourceMonitorConfig 资源监控器配置(字节 / %)
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 为系统保留的内存
	SafetyThreshold     int64 // 可用内存低于该值时不再打开新标签页
	CPULoadThreshold    int   // CPU负载阈值, >=200 视为禁用
	MaxTabsLimit        int   // 绝对最大标签页数
	TabMemoryUsage      int64 // 单个标签页平均内存消耗
}

// DefaultResourceMonitorConfig 默认配置
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SafetyReserveMemory: 1024 * mb,
		SafetyThreshold:     500 * mb,
		CPULoadThreshold:    80,
		MaxTabsLimit:        16,
		TabMemoryUsage:      100 * mb,
	}
}

// ResourceMonitor 采样可用内存和CPU负载, 用于限制实际并发数
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 采样函数, 测试中可替换
	availableMemory func() (uint64, error)
	cpuPercent      func() (float64, error)

	mu        sync.RWMutex
	available uint64
	cpuUsage  float64
	sampled   bool

	cancel context.CancelFunc
}

// NewResourceMonitor 创建资源监控器
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.TabMemoryUsage <= 0 {
		config.TabMemoryUsage = 100 * mb
	}
	if config.MaxTabsLimit <= 0 {
		config.MaxTabsLimit = 16
	}
	return &ResourceMonitor{
		config:          config,
		availableMemory: sampleAvailableMemory,
		cpuPercent:      sampleCPUPercent,
	}
}

func sampleAvailableMemory() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

func sampleCPUPercent() (float64, error) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("CPU使用率数据为空")
	}
	return percentages[0], nil
}

// Sample 立即采样一次
func (rm *ResourceMonitor) Sample() {
	available, memErr := rm.availableMemory()
	if memErr != nil {
		log.Warn().Err(memErr).Msg("获取可用内存失败")
	}
	usage, cpuErr := rm.cpuPercent()
	if cpuErr != nil {
		log.Warn().Err(cpuErr).Msg("获取CPU使用率失败")
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if memErr == nil {
		rm.available = available
		rm.sampled = true
	}
	if cpuErr == nil {
		rm.cpuUsage = usage
	}
}

// StartMonitoring 启动后台采样, 重复调用无效果
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	if rm.cancel != nil {
		rm.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	rm.cancel = cancel
	rm.mu.Unlock()

	rm.Sample()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.Sample()
			}
		}
	}()
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancel != nil {
		rm.cancel()
		rm.cancel = nil
	}
}

func (rm *ResourceMonitor) usableMemory() (int64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if !rm.sampled {
		return 0, false
	}
	return int64(rm.available) - rm.config.SafetyReserveMemory, true
}

// CalculateMaxTabs 当前主机能承受的标签页数, 至少为1
func (rm *ResourceMonitor) CalculateMaxTabs() int {
	result := runtime.NumCPU()
	if rm.config.MaxTabsLimit < result {
		result = rm.config.MaxTabsLimit
	}

	if usable, ok := rm.usableMemory(); ok {
		byMemory := 1
		if usable > rm.config.SafetyThreshold {
			byMemory = int((usable - rm.config.SafetyThreshold) / rm.config.TabMemoryUsage)
		}
		if byMemory < result {
			result = byMemory
		}
	}

	if result < 1 {
		result = 1
	}
	return result
}

// EffectiveConcurrency 按资源限制收紧配置的并发上限
func (rm *ResourceMonitor) EffectiveConcurrency(configured int) int {
	limit := rm.CalculateMaxTabs()
	if configured < limit {
		limit = configured
	}
	if limit < 1 {
		limit = 1
	}
	if limit < configured {
		log.Warn().Msgf("系统资源有限, 并发上限从 %d 降为 %d", configured, limit)
	}
	return limit
}

// CheckResourceAvailability 是否适合再打开一个标签页
func (rm *ResourceMonitor) CheckResourceAvailability() (bool, string) {
	if usable, ok := rm.usableMemory(); ok && usable < rm.config.SafetyThreshold {
		return false, fmt.Sprintf("内存不足(当前%dMB)", usable/mb)
	}

	if rm.config.CPULoadThreshold < 200 {
		rm.mu.RLock()
		usage := rm.cpuUsage
		rm.mu.RUnlock()
		if usage > float64(rm.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", usage)
		}
	}
	return true, ""
}
