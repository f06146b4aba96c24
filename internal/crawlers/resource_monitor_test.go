package crawlers

import (
	"errors"
	"runtime"
	"testing"
)

func newTestMonitor(available uint64, cpuUsage float64) *ResourceMonitor {
	rm := NewResourceMonitor(ResourceMonitorConfig{
		SafetyReserveMemory: 1024 * mb,
		SafetyThreshold:     500 * mb,
		CPULoadThreshold:    80,
		MaxTabsLimit:        16,
		TabMemoryUsage:      100 * mb,
	})
	rm.availableMemory = func() (uint64, error) { return available, nil }
	rm.cpuPercent = func() (float64, error) { return cpuUsage, nil }
	rm.Sample()
	return rm
}

func TestResourceMonitor_CalculateMaxTabs(t *testing.T) {
	cpuCap := runtime.NumCPU()
	if cpuCap > 16 {
		cpuCap = 16
	}

	tests := []struct {
		name      string
		available uint64
		want      int
	}{
		{"内存充足", 64 * 1024 * mb, cpuCap},
		{"内存只够2个", (1024 + 500 + 250) * mb, minInt(2, cpuCap)},
		{"内存不足仍至少1个", 256 * mb, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := newTestMonitor(tt.available, 0)
			if got := rm.CalculateMaxTabs(); got != tt.want {
				t.Errorf("CalculateMaxTabs() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResourceMonitor_EffectiveConcurrency(t *testing.T) {
	rm := newTestMonitor(64*1024*mb, 0)
	if got := rm.EffectiveConcurrency(2); got != minInt(2, runtime.NumCPU()) {
		t.Errorf("EffectiveConcurrency(2) = %d", got)
	}

	low := newTestMonitor(256*mb, 0)
	if got := low.EffectiveConcurrency(4); got != 1 {
		t.Errorf("内存不足时 EffectiveConcurrency(4) = %d, want 1", got)
	}
}

func TestResourceMonitor_CheckResourceAvailability(t *testing.T) {
	tests := []struct {
		name      string
		available uint64
		cpu       float64
		want      bool
	}{
		{"资源充足", 8 * 1024 * mb, 10, true},
		{"内存不足", 1200 * mb, 10, false},
		{"CPU过高", 8 * 1024 * mb, 95, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := newTestMonitor(tt.available, tt.cpu)
			ok, reason := rm.CheckResourceAvailability()
			if ok != tt.want {
				t.Errorf("CheckResourceAvailability() = (%v, %q), want %v", ok, reason, tt.want)
			}
		})
	}
}

func TestResourceMonitor_SampleFailure(t *testing.T) {
	rm := NewResourceMonitor(DefaultResourceMonitorConfig())
	rm.availableMemory = func() (uint64, error) { return 0, errors.New("unsupported") }
	rm.cpuPercent = func() (float64, error) { return 0, errors.New("unsupported") }
	rm.Sample()

	// 没有内存数据时只受CPU核数限制
	if got := rm.CalculateMaxTabs(); got < 1 {
		t.Errorf("CalculateMaxTabs() = %d", got)
	}
	if ok, _ := rm.CheckResourceAvailability(); !ok {
		t.Error("没有采样数据时不应阻止创建")
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
