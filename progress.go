package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

const (
	EventTaskStart        = "task_start"
	EventTaskComplete     = "task_complete"
	EventSubtaskStart     = "subtask_start"
	EventSubtaskComplete  = "subtask_complete"
	EventSnapshotStart    = "snapshot_start"
	EventSnapshotComplete = "snapshot_complete"
	EventRestoreStart     = "restore_start"
	EventRestoreComplete  = "restore_complete"
	EventCleanupStart     = "cleanup_start"
	EventCleanupComplete  = "cleanup_complete"
	EventLogMessage       = "log_message"
	EventErrorMessage     = "error_message"
)

type ProgressEvent struct {
	Event            string   `json:"event"`
	TaskName         string   `json:"task_name,omitempty"`
	WorkloadFile     string   `json:"workload_file,omitempty"`
	Status           string   `json:"status,omitempty"`
	DurationSeconds  *float64 `json:"duration_seconds,omitempty"`
	TaskIndex        int      `json:"task_index"`
	TotalTasks       int      `json:"total_tasks"`
	NumOps           *int     `json:"num_ops,omitempty"`
	OriginalOpsCount *int     `json:"original_ops_count,omitempty"`
	ValidOpsCount    *int     `json:"valid_ops_count,omitempty"`
	FilteredOpsCount *int     `json:"filtered_ops_count,omitempty"`
	Message          string   `json:"message,omitempty"`
	Level            string   `json:"level,omitempty"`
	ErrorType        string   `json:"error_type,omitempty"`
}

// ProgressReporter posts progress events to the operator-configured callback
// URL. Delivery is best effort: the round trip blocks the caller but every
// failure is swallowed, so reporting can never change the outcome of a run.
// An empty URL disables reporting entirely.
type ProgressReporter struct {
	url    string
	client *http.Client
}

func NewProgressReporter(url string) *ProgressReporter {
	return &ProgressReporter{
		url:    url,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

func (p *ProgressReporter) Enabled() bool {
	return p.url != ""
}

func (p *ProgressReporter) Send(event ProgressEvent) {
	if !p.Enabled() {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		Logger.Debugf("failed to encode progress event %v: %v", event.Event, err)
		return
	}
	resp, err := p.client.Post(p.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		Logger.Debugf("failed to deliver progress event %v: %v", event.Event, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		Logger.Debugf("progress callback returned status %v for event %v", resp.StatusCode, event.Event)
	}
}

func (p *ProgressReporter) Progress(event, taskName, workloadFile, status string, duration float64, taskIndex, totalTasks int) {
	e := ProgressEvent{
		Event:        event,
		TaskName:     taskName,
		WorkloadFile: workloadFile,
		Status:       status,
		TaskIndex:    taskIndex,
		TotalTasks:   totalTasks,
	}
	if duration >= 0 {
		e.DurationSeconds = &duration
	}
	p.Send(e)
}

func (p *ProgressReporter) SubtaskStart(taskName string, taskIndex, totalTasks, numOps int) {
	p.Send(ProgressEvent{
		Event:      EventSubtaskStart,
		TaskName:   taskName,
		TaskIndex:  taskIndex,
		TotalTasks: totalTasks,
		NumOps:     &numOps,
	})
}

func (p *ProgressReporter) SubtaskComplete(taskName, status string, duration float64, taskIndex, totalTasks int, counts Translation) {
	original, valid, filtered := counts.Original, counts.Valid, counts.Filtered()
	p.Send(ProgressEvent{
		Event:            EventSubtaskComplete,
		TaskName:         taskName,
		Status:           status,
		DurationSeconds:  &duration,
		TaskIndex:        taskIndex,
		TotalTasks:       totalTasks,
		OriginalOpsCount: &original,
		ValidOpsCount:    &valid,
		FilteredOpsCount: &filtered,
	})
}

func (p *ProgressReporter) LogMessage(message string, level string) {
	p.Send(ProgressEvent{Event: EventLogMessage, Message: message, Level: level})
}

func (p *ProgressReporter) ErrorMessage(message string, errorType string) {
	p.Send(ProgressEvent{Event: EventErrorMessage, Message: message, ErrorType: errorType})
}
