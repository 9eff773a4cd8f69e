package main

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ShowSystemInfo prints a short hardware summary. Handy before queueing
// a 100 GB repack: shows whether the box has the RAM and disk pressure
// headroom for it.
func ShowSystemInfo() {
	fmt.Println("--- System Information ---")

	vmStat, err := mem.VirtualMemory()
	if err == nil {
		fmt.Printf("RAM: Available %.2f GB / Total %.2f GB (Used: %.2f%%)\n",
			float64(vmStat.Available)/1024/1024/1024,
			float64(vmStat.Total)/1024/1024/1024,
			vmStat.UsedPercent)
	} else {
		fmt.Printf("RAM: Error fetching - %v\n", err)
		appLogger.Printf("[SysInfo] Error fetching RAM info: %v", err)
	}

	cpuStats, err := cpu.Info()
	if err == nil && len(cpuStats) > 0 {
		fmt.Printf("CPU: %s (Physical Cores: %d, Logical Processors: %d, Speed: %.2f GHz)\n",
			cpuStats[0].ModelName, cpuStats[0].Cores, runtime.NumCPU(), cpuStats[0].Mhz/1000.0)
	} else {
		fmt.Printf("CPU: Error fetching - %v\n", err)
		appLogger.Printf("[SysInfo] Error fetching CPU info: %v", err)
	}

	fmt.Printf("OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println("--------------------------")
}
