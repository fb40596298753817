package main

import (
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

type HostInfo struct {
	Arch     string  `json:"arch"`
	Hostname string  `json:"hostname"`
	Platform string  `json:"platform"`
	CPUCount int     `json:"cpu_count"`
	CPUFreq  float64 `json:"cpu_freq_mhz"`
	RAM      float64 `json:"ram_gb"`
}

func HostStat() HostInfo {
	hostStat, _ := host.Info()
	cpuStat, _ := cpu.Info()
	vmStat, _ := mem.VirtualMemory()
	totalFreq := 0.0
	for _, cpu := range cpuStat {
		totalFreq += cpu.Mhz
	}
	info := HostInfo{
		Arch:     runtime.GOARCH,
		Hostname: hostStat.Hostname,
		Platform: hostStat.Platform,
		CPUCount: len(cpuStat),
		RAM:      float64(vmStat.Total) / 1024 / 1024 / 1024,
	}
	if len(cpuStat) > 0 {
		info.CPUFreq = totalFreq / float64(len(cpuStat))
	}
	return info
}

// BatchResult is the outcome of one trial: one task executed at one batch
// size. Latency figures are microseconds per operation, aggregated over the
// per-batch samples the executor returned.
type BatchResult struct {
	BatchSize        int     `json:"batch_size"`
	AvgLatencyUs     float64 `json:"avg_latency_us"`
	P50LatencyUs     float64 `json:"p50_latency_us"`
	P99LatencyUs     float64 `json:"p99_latency_us"`
	MaxLatencyUs     float64 `json:"max_latency_us"`
	OriginalOpsCount int     `json:"original_ops_count"`
	ValidOpsCount    int     `json:"valid_ops_count"`
	FilteredOpsCount int     `json:"filtered_ops_count"`
	ErrorCount       int     `json:"error_count"`
	Status           string  `json:"status"`
}

type TaskResult struct {
	TaskType        string        `json:"task_type"`
	OpsCount        int           `json:"ops_count"`
	Status          string        `json:"status"`
	DurationSeconds float64       `json:"duration_seconds"`
	Error           string        `json:"error,omitempty"`
	Message         string        `json:"message,omitempty"`
	Load            *LoadStats    `json:"load,omitempty"`
	BatchResults    []BatchResult `json:"batch_results,omitempty"`
}

// BenchmarkRun is the report returned to the caller: run metadata plus one
// TaskResult per workload file, in execution order. Immutable once returned.
type BenchmarkRun struct {
	RunID       string       `json:"run_id"`
	Database    string       `json:"database"`
	Dataset     string       `json:"dataset"`
	DatasetPath string       `json:"dataset_path"`
	Workload    string       `json:"workload"`
	Timestamp   string       `json:"timestamp"`
	Host        HostInfo     `json:"host"`
	Results     []TaskResult `json:"results"`
}

func NewBenchmarkRun(database string, datasetPath string, workload string) *BenchmarkRun {
	return &BenchmarkRun{
		RunID:       uuid.NewString(),
		Database:    database,
		Dataset:     datasetName(datasetPath),
		DatasetPath: datasetPath,
		Workload:    workload,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Host:        HostStat(),
		Results:     make([]TaskResult, 0),
	}
}

func (r *BenchmarkRun) Append(result TaskResult) {
	r.Results = append(r.Results, result)
}

// datasetName strips the directory and a trailing extension: both file
// datasets ("roadNet-CA.mtx") and CSV directories ("delaunay_n13") map to a
// plain name.
func datasetName(datasetPath string) string {
	name := filepath.Base(filepath.Clean(datasetPath))
	if dot := strings.LastIndex(name, "."); dot > 0 {
		name = name[:dot]
	}
	return name
}
