package queue

import (
	"encoding/json"
	"errors"
	"fmt"
)

type TaskType string

const (
	// TaskAnalyze re-runs damage analysis for a set of photos.
	TaskAnalyze TaskType = "analyze"
	// TaskSweep looks for photos left pending and schedules them.
	TaskSweep TaskType = "sweep"
)

type Task struct {
	Type     TaskType
	PhotoIDs []int64
}

var ErrMalformedTask = errors.New("malformed task")

// Values flattens the task into stream entry fields.
func (t Task) Values() map[string]any {
	ids := t.PhotoIDs
	if ids == nil {
		ids = []int64{}
	}
	encoded, _ := json.Marshal(ids)
	return map[string]any{
		"type":     string(t.Type),
		"photoIds": string(encoded),
	}
}

// DecodeTask parses stream entry fields written by Task.Values.
func DecodeTask(values map[string]any) (Task, error) {
	typ, _ := values["type"].(string)
	if typ == "" {
		return Task{}, fmt.Errorf("%w: missing type", ErrMalformedTask)
	}

	task := Task{Type: TaskType(typ)}
	if raw, ok := values["photoIds"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &task.PhotoIDs); err != nil {
			return Task{}, fmt.Errorf("%w: photoIds: %v", ErrMalformedTask, err)
		}
	}
	return task, nil
}
