package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Field names for the job model
const (
	// JobIDField is the database field name for the job id
	JobIDField = "id"
	// JobCompletedField is the database field name for the completed flag
	JobCompletedField = "completed"
	// JobErrorField is the database field name for the error flag
	JobErrorField = "error"
)

// Params is the opaque key/value parameter mapping for one job. It is
// serialized as JSON in the store and round-trips losslessly.
type Params map[string]interface{}

// Value implements the driver.Valuer interface
func (p Params) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface
func (p *Params) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}

	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}

	var temp map[string]interface{}
	if err := json.Unmarshal(bytes, &temp); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	*p = temp
	return nil
}

// ErrorInfo holds the captured failure details for a job: the failure kind,
// the message and, when available, the stack trace text.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

// Value implements the driver.Valuer interface
func (e *ErrorInfo) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}

// Scan implements the sql.Scanner interface
func (e *ErrorInfo) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(bytes, e); err != nil {
		return fmt.Errorf("failed to unmarshal error info: %w", err)
	}
	return nil
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}
}

// Job represents one unit of work in a batch. Rows are created in bulk by
// the generator with sequential ids starting at 1 and mutated once per
// execution attempt by the runner. StartTime and EndTime bracket the latest
// attempt only; re-runs overwrite them.
type Job struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Params    Params     `json:"params" gorm:"type:jsonb"`
	Completed bool       `json:"completed" gorm:"not null;default:false;index"`
	Error     bool       `json:"error" gorm:"not null;default:false;index"`
	ErrorInfo *ErrorInfo `json:"error_info,omitempty" gorm:"type:jsonb"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// JobFilter selects jobs by their completion/error state. Nil fields match
// any value.
type JobFilter struct {
	Completed *bool
	Error     *bool
}

// Bool returns a pointer to b for use in a JobFilter.
func Bool(b bool) *bool {
	return &b
}

// RunDuration returns the wall time of the latest attempt, or false when the
// attempt never finished.
func (j *Job) RunDuration() (time.Duration, bool) {
	if j.StartTime == nil || j.EndTime == nil {
		return 0, false
	}
	return j.EndTime.Sub(*j.StartTime), true
}
