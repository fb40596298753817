package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// ErrLoadFailed marks the one task failure that aborts the whole run.
var ErrLoadFailed = errors.New("graph load failed")

var vertexPropertyTasks = []string{TaskUpdateVertexProp, TaskGetVertexByProperty}
var edgePropertyTasks = []string{TaskUpdateEdgeProp, TaskGetEdgeByProperty}

// Dispatcher turns a directory of workload task files into a deterministic
// sequence of backend calls and assembles the run report. Execution is
// strictly sequential: one task at a time, one batch size at a time.
type Dispatcher struct {
	exec        Executor
	datasetPath string
	reporter    *ProgressReporter
	snapshots   *SnapshotController
	trials      *TrialRunner
	translator  *Translator

	// populated by LOAD_GRAPH, consulted to skip property tasks on
	// datasets that carry no property columns
	load *LoadStats
}

func NewDispatcher(exec Executor, datasetPath string, reporter *ProgressReporter) *Dispatcher {
	snapshots := NewSnapshotController(exec)
	return &Dispatcher{
		exec:        exec,
		datasetPath: datasetPath,
		reporter:    reporter,
		snapshots:   snapshots,
		trials:      NewTrialRunner(exec, snapshots, reporter),
		translator:  NewTranslator(exec),
	}
}

// ExecuteBenchmark runs every workload file of the directory in filename
// order. The returned run contains one TaskResult per executed file even when
// the run aborts on a failed LOAD_GRAPH, in which case the error wraps
// ErrLoadFailed.
func (d *Dispatcher) ExecuteBenchmark(workloadDir string) (*BenchmarkRun, error) {
	files, err := ListWorkloadFiles(workloadDir)
	if err != nil {
		return nil, err
	}

	if err := d.exec.InitDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize %v backend: %w", d.exec.Name(), err)
	}

	run := NewBenchmarkRun(d.exec.Name(), d.datasetPath, WorkloadName(workloadDir))
	total := len(files)

	for i, file := range files {
		Logger.Infof("executing workload file %v (%v/%v)", filepath.Base(file), i+1, total)
		result := d.executeWorkloadFile(file, i, total)
		run.Append(result)

		if result.TaskType == TaskLoadGraph && result.Status == StatusFailed {
			Logger.Errorf("LOAD_GRAPH failed, aborting benchmark run: %v", result.Error)
			d.teardown()
			return run, fmt.Errorf("%w: %v", ErrLoadFailed, result.Error)
		}
	}

	d.teardown()
	return run, nil
}

// teardown releases the backend and its directories, on the normal and the
// aborted exit path alike.
func (d *Dispatcher) teardown() {
	if err := d.exec.Shutdown(); err != nil {
		Logger.Warnf("failed to shut down %v backend: %v", d.exec.Name(), err)
	}
	d.cleanup()
}

func (d *Dispatcher) executeWorkloadFile(file string, taskIndex, totalTasks int) TaskResult {
	start := time.Now()

	task, err := ReadWorkloadTask(file)
	if err != nil {
		d.reporter.ErrorMessage(err.Error(), "WorkloadParseError")
		return TaskResult{
			TaskType:        "UNKNOWN",
			Status:          StatusFailed,
			Error:           err.Error(),
			DurationSeconds: time.Since(start).Seconds(),
		}
	}

	result := TaskResult{TaskType: task.TaskType, OpsCount: task.OpsCount}
	d.reporter.Progress(EventTaskStart, task.TaskType, filepath.Base(file), "", -1, taskIndex, totalTasks)

	if task.TaskType == TaskLoadGraph {
		d.executeLoadGraph(&result, taskIndex, totalTasks)
	} else if reason, skip := d.skipReason(task.TaskType); skip {
		result.Status = StatusSkipped
		result.Message = reason
		d.reporter.LogMessage(fmt.Sprintf("skipping %v: %v", task.TaskType, reason), "INFO")
	} else if err := d.executeBatchTask(task, &result, taskIndex, totalTasks); err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		d.reporter.ErrorMessage(err.Error(), "TaskError")
		Logger.Errorf("task %v failed: %v", task.TaskType, err)
	}

	result.DurationSeconds = time.Since(start).Seconds()
	d.reporter.Progress(EventTaskComplete, task.TaskType, filepath.Base(file), result.Status,
		result.DurationSeconds, taskIndex, totalTasks)
	return result
}

// executeLoadGraph loads the dataset and immediately snapshots the freshly
// loaded state as the baseline every later trial restores to. The snapshot is
// best effort: its failure degrades trial isolation, not the load itself.
func (d *Dispatcher) executeLoadGraph(result *TaskResult, taskIndex, totalTasks int) {
	stats, err := d.exec.LoadGraph(d.datasetPath)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		d.reporter.ErrorMessage(err.Error(), "LoadError")
		return
	}
	d.load = &stats
	result.Status = StatusSuccess
	result.Load = &stats
	d.reporter.LogMessage(fmt.Sprintf("loaded %v nodes and %v edges", stats.Nodes, stats.Edges), "INFO")

	d.reporter.Progress(EventSnapshotStart, "SNAPSHOT", "", "", -1, taskIndex, totalTasks)
	if err := d.snapshots.Snapshot(); err != nil {
		Logger.Warnf("failed to snapshot state after load, trials will run without isolation: %v", err)
		d.reporter.Progress(EventSnapshotComplete, "SNAPSHOT", "", StatusFailed, -1, taskIndex, totalTasks)
		return
	}
	d.reporter.Progress(EventSnapshotComplete, "SNAPSHOT", "", StatusSuccess, -1, taskIndex, totalTasks)
}

// skipReason reports why a task cannot run at all: the type is unknown, or it
// needs property columns the loaded dataset does not have. Both outcomes are
// diagnostics, not errors.
func (d *Dispatcher) skipReason(taskType string) (string, bool) {
	switch taskType {
	case TaskAddVertex, TaskRemoveVertex, TaskAddEdge, TaskRemoveEdge, TaskGetNbrs:
		return "", false
	case TaskUpdateVertexProp, TaskUpdateEdgeProp, TaskGetVertexByProperty, TaskGetEdgeByProperty:
		if d.load == nil {
			return "", false
		}
		if slices.Contains(vertexPropertyTasks, taskType) && len(d.load.NodeProperties) == 0 {
			return "dataset has no vertex property columns", true
		}
		if slices.Contains(edgePropertyTasks, taskType) && len(d.load.EdgeProperties) == 0 {
			return "dataset has no edge property columns", true
		}
		return "", false
	default:
		return fmt.Sprintf("task type not recognized: %v", taskType), true
	}
}

func (d *Dispatcher) executeBatchTask(task WorkloadTask, result *TaskResult, taskIndex, totalTasks int) error {
	t, err := d.prepareTrial(task)
	if err != nil {
		return err
	}
	if result.OpsCount == 0 {
		result.OpsCount = t.Counts.Original
	}
	batchResults, err := d.trials.RunTrials(t, task.BatchSizes, taskIndex, totalTasks)
	if err != nil {
		return err
	}
	result.Status = StatusSuccess
	result.BatchResults = batchResults
	return nil
}

// prepareTrial parses the task parameters and translates origin ids to system
// ids once, before any timing starts. Operations whose ids never appeared
// during load are dropped here and surface as filtered_ops_count.
func (d *Dispatcher) prepareTrial(task WorkloadTask) (trial, error) {
	t := trial{TaskType: task.TaskType}
	switch task.TaskType {
	case TaskAddVertex:
		var params CountParams
		if err := decodeParams(task, &params); err != nil {
			return t, err
		}
		count := params.Count
		if count == 0 {
			count = task.OpsCount
		}
		t.Counts = Translation{Original: count, Valid: count}
		t.Run = func(batchSize int) ([]float64, error) {
			return d.exec.AddVertex(count, batchSize)
		}

	case TaskRemoveVertex:
		var params IDListParams
		if err := decodeParams(task, &params); err != nil {
			return t, err
		}
		ids, counts := d.translator.IDs(params.IDs)
		t.Counts = counts
		t.Run = func(batchSize int) ([]float64, error) {
			return d.exec.RemoveVertex(ids, batchSize)
		}

	case TaskAddEdge:
		var params EdgeParams
		if err := decodeParams(task, &params); err != nil {
			return t, err
		}
		pairs, counts := d.translator.Pairs(params.Pairs)
		t.Counts = counts
		t.Run = func(batchSize int) ([]float64, error) {
			return d.exec.AddEdge(params.Label, pairs, batchSize)
		}

	case TaskRemoveEdge:
		var params EdgeParams
		if err := decodeParams(task, &params); err != nil {
			return t, err
		}
		pairs, counts := d.translator.Pairs(params.Pairs)
		t.Counts = counts
		t.Run = func(batchSize int) ([]float64, error) {
			return d.exec.RemoveEdge(params.Label, pairs, batchSize)
		}

	case TaskGetNbrs:
		var params NbrsParams
		if err := decodeParams(task, &params); err != nil {
			return t, err
		}
		ids, counts := d.translator.IDs(params.IDs)
		t.Counts = counts
		t.Run = func(batchSize int) ([]float64, error) {
			return d.exec.GetNbrs(params.Direction, ids, batchSize)
		}

	case TaskUpdateVertexProp:
		propExec, err := d.propertyExecutor(task.TaskType)
		if err != nil {
			return t, err
		}
		var params VertexUpdateParams
		if err := decodeParams(task, &params); err != nil {
			return t, err
		}
		updates, counts := d.translator.VertexUpdates(params.Updates)
		t.Counts = counts
		t.Run = func(batchSize int) ([]float64, error) {
			return propExec.UpdateVertexProperty(updates, batchSize)
		}

	case TaskUpdateEdgeProp:
		propExec, err := d.propertyExecutor(task.TaskType)
		if err != nil {
			return t, err
		}
		var params EdgeUpdateParams
		if err := decodeParams(task, &params); err != nil {
			return t, err
		}
		updates, counts := d.translator.EdgeUpdates(params.Updates)
		t.Counts = counts
		t.Run = func(batchSize int) ([]float64, error) {
			return propExec.UpdateEdgeProperty(params.Label, updates, batchSize)
		}

	case TaskGetVertexByProperty:
		propExec, err := d.propertyExecutor(task.TaskType)
		if err != nil {
			return t, err
		}
		var params QueryParams
		if err := decodeParams(task, &params); err != nil {
			return t, err
		}
		queries := propertyQueries(params.Queries)
		t.Counts = Translation{Original: len(queries), Valid: len(queries)}
		t.Run = func(batchSize int) ([]float64, error) {
			return propExec.GetVertexByProperty(queries, batchSize)
		}

	case TaskGetEdgeByProperty:
		propExec, err := d.propertyExecutor(task.TaskType)
		if err != nil {
			return t, err
		}
		var params QueryParams
		if err := decodeParams(task, &params); err != nil {
			return t, err
		}
		queries := propertyQueries(params.Queries)
		t.Counts = Translation{Original: len(queries), Valid: len(queries)}
		t.Run = func(batchSize int) ([]float64, error) {
			return propExec.GetEdgeByProperty(params.Label, queries, batchSize)
		}

	default:
		return t, fmt.Errorf("unknown task type: %v", task.TaskType)
	}
	return t, nil
}

func (d *Dispatcher) propertyExecutor(taskType string) (PropertyExecutor, error) {
	propExec, ok := d.exec.(PropertyExecutor)
	if !ok {
		return nil, fmt.Errorf("%v requires property support, backend %v provides the structural set only",
			taskType, d.exec.Name())
	}
	return propExec, nil
}

func decodeParams(task WorkloadTask, target any) error {
	if len(task.Parameters) == 0 {
		return fmt.Errorf("%v task has no parameters", task.TaskType)
	}
	if err := json.Unmarshal(task.Parameters, target); err != nil {
		return fmt.Errorf("failed to parse %v parameters: %w", task.TaskType, err)
	}
	return nil
}

func propertyQueries(raw []RawPropertyQuery) []PropertyQuery {
	queries := make([]PropertyQuery, 0, len(raw))
	for _, query := range raw {
		queries = append(queries, PropertyQuery{Key: query.Key, Value: query.Value})
	}
	return queries
}

// cleanup removes the live storage and snapshot directories after shutdown.
// A failed cleanup is reported through the progress channel only.
func (d *Dispatcher) cleanup() {
	d.reporter.Progress(EventCleanupStart, "CLEANUP", "", "", -1, 0, 0)
	var failed error
	for _, dir := range []string{d.exec.DatabasePath(), d.exec.SnapshotPath()} {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			failed = err
			Logger.Warnf("failed to remove %v: %v", dir, err)
		}
	}
	if failed != nil {
		d.reporter.Progress(EventCleanupComplete, "CLEANUP", "", StatusFailed, -1, 0, 0)
		d.reporter.ErrorMessage(fmt.Sprintf("failed to clean up database files: %v", failed), "CleanupError")
		return
	}
	d.reporter.Progress(EventCleanupComplete, "CLEANUP", "", StatusSuccess, -1, 0, 0)
}
