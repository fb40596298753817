package main

import (
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// trial describes one task ready for batched execution: translated working
// set counts and a closure invoking the executor operation at a batch size.
type trial struct {
	TaskType string
	Counts   Translation
	Run      func(batchSize int) ([]float64, error)
}

// TrialRunner sweeps a task over its batch sizes. Every trial starts from the
// post-load baseline: the storage directory is restored before each batch
// size, uniformly for mutating and read-only tasks alike. A restore failure
// is reported as a warning and the trial proceeds on the current state.
type TrialRunner struct {
	exec      Executor
	snapshots *SnapshotController
	reporter  *ProgressReporter
}

func NewTrialRunner(exec Executor, snapshots *SnapshotController, reporter *ProgressReporter) *TrialRunner {
	return &TrialRunner{exec: exec, snapshots: snapshots, reporter: reporter}
}

func (r *TrialRunner) RunTrials(t trial, batchSizes []int, taskIndex, totalTasks int) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(batchSizes))
	for _, batchSize := range batchSizes {
		result, err := r.runTrial(t, batchSize, taskIndex, totalTasks)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (r *TrialRunner) runTrial(t trial, batchSize int, taskIndex, totalTasks int) (BatchResult, error) {
	r.reporter.Progress(EventRestoreStart, "RESTORE", "", "", -1, taskIndex, totalTasks)
	if err := r.snapshots.Restore(); err != nil {
		// Proceeding on un-reset state skews this trial against the others.
		Logger.Warnf("failed to restore %v state before %v trial (batch_size=%v), continuing on current state: %v",
			r.exec.Name(), t.TaskType, batchSize, err)
		r.reporter.Progress(EventRestoreComplete, "RESTORE", "", StatusFailed, -1, taskIndex, totalTasks)
	} else {
		r.reporter.Progress(EventRestoreComplete, "RESTORE", "", StatusSuccess, -1, taskIndex, totalTasks)
	}

	subtask := fmt.Sprintf("%v (batch_size=%v)", t.TaskType, batchSize)
	r.reporter.SubtaskStart(subtask, taskIndex, totalTasks, t.Counts.Valid)

	errorsBefore := r.exec.ErrorCount()
	elapsed, samples, err := timed(func() ([]float64, error) { return t.Run(batchSize) })
	if err != nil {
		return BatchResult{}, fmt.Errorf("%v trial with batch size %v failed: %w", t.TaskType, batchSize, err)
	}
	errorCount := r.exec.ErrorCount() - errorsBefore

	result := BatchResult{
		BatchSize:        batchSize,
		OriginalOpsCount: t.Counts.Original,
		ValidOpsCount:    t.Counts.Valid,
		FilteredOpsCount: t.Counts.Filtered(),
		ErrorCount:       errorCount,
		Status:           StatusSuccess,
	}
	fillLatencyStats(&result, samples)

	r.reporter.SubtaskComplete(subtask, StatusSuccess, elapsed, taskIndex, totalTasks, t.Counts)
	return result, nil
}

func timed(run func() ([]float64, error)) (float64, []float64, error) {
	start := time.Now()
	samples, err := run()
	return time.Since(start).Seconds(), samples, err
}

// fillLatencyStats folds the per-batch latency samples into summary figures.
// The histogram tracks whole microseconds, which is plenty for network-bound
// backend operations.
func fillLatencyStats(result *BatchResult, samples []float64) {
	if len(samples) == 0 {
		return
	}
	histogram := hdrhistogram.New(1, 3600_000_000, 3)
	sum := 0.0
	for _, sample := range samples {
		sum += sample
		if err := histogram.RecordValue(int64(sample)); err != nil {
			Logger.Debugf("latency sample %v out of histogram range: %v", sample, err)
		}
	}
	result.AvgLatencyUs = sum / float64(len(samples))
	result.P50LatencyUs = float64(histogram.ValueAtQuantile(50))
	result.P99LatencyUs = float64(histogram.ValueAtQuantile(99))
	result.MaxLatencyUs = float64(histogram.Max())
}
