package nats

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job is the message body exchanged between producers and workers.
type Job struct {
	Method   string  `json:"method,omitempty"`
	UID      string  `json:"uid,omitempty"`
	QueuedAt float64 `json:"queued_at,omitempty"`
	Args     []any   `json:"args"`
}

func (j *Job) encode() ([]byte, error) {
	if j.QueuedAt == 0 {
		j.QueuedAt = float64(time.Now().UnixMicro()) / 1e6
	}
	if j.Args == nil {
		j.Args = []any{}
	}

	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}

	return data, nil
}

func decodeJob(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}

	return &j, nil
}
