package crawlers

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 职责: 采样可用内存和CPU负载,计算抓取并发上限
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// 缓存的计算结果(每秒更新一次)
	cachedMaxWorkers int
	lastCacheTime    time.Time
	mu               sync.Mutex

	// 采样函数,测试中可替换
	availableMemory func() (uint64, error)
	cpuLoad         func() (float64, error)
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	CPULoadThreshold    int   // CPU负载阈值(%), >=100 视为禁用
	MaxWorkersLimit     int   // 绝对最大并发数
	WorkerMemoryUsage   int64 // 单个抓取任务平均内存消耗(字节)
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.WorkerMemoryUsage <= 0 {
		config.WorkerMemoryUsage = 32 * 1024 * 1024 // 32MB
	}
	if config.MaxWorkersLimit < 1 {
		config.MaxWorkersLimit = 1
	}

	return &ResourceMonitor{
		config:          config,
		availableMemory: systemAvailableMemory,
		cpuLoad:         systemCPULoad,
	}
}

// systemAvailableMemory 使用gopsutil获取系统可用内存
func systemAvailableMemory() (uint64, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vmStat.Available, nil
}

// systemCPULoad 获取所有CPU核心的平均使用率(100毫秒采样)
func systemCPULoad() (float64, error) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percentages) == 0 {
		return 0, nil
	}
	return percentages[0], nil
}

// CalculateMaxWorkers 动态计算当前允许的最大并发数
// 结果在1秒内缓存;采样失败时退回到配置上限
func (rm *ResourceMonitor) CalculateMaxWorkers() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if time.Since(rm.lastCacheTime) < time.Second && rm.cachedMaxWorkers > 0 {
		return rm.cachedMaxWorkers
	}

	result := rm.config.MaxWorkersLimit

	// 基于内存计算上限
	if available, err := rm.availableMemory(); err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,忽略内存限制")
	} else {
		surplus := int64(available) - rm.config.SafetyReserveMemory
		byMemory := int(surplus / rm.config.WorkerMemoryUsage)
		if byMemory < result {
			log.Debug().Int64("available_mb", int64(available)/(1024*1024)).
				Int("limit", byMemory).Msg("可用内存限制并发数")
			result = byMemory
		}
	}

	// CPU负载超过阈值时减半
	if rm.config.CPULoadThreshold > 0 && rm.config.CPULoadThreshold < 100 {
		if load, err := rm.cpuLoad(); err != nil {
			log.Warn().Err(err).Msg("获取CPU使用率失败")
		} else if load > float64(rm.config.CPULoadThreshold) {
			log.Warn().Msgf("CPU负载过高(当前%.1f%%),并发数减半", load)
			result /= 2
		}
	}

	// 确保至少1个
	if result < 1 {
		result = 1
	}

	rm.cachedMaxWorkers = result
	rm.lastCacheTime = time.Now()
	return result
}
