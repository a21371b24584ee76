package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunStatus is the aggregate status of a harmonisation run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Terminal reports whether the run has reached a final status.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// RunConfig is the caller-supplied configuration of a run.
type RunConfig struct {
	Name        string
	Description string
	Source      string
	UserID      string
}

func (c RunConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Source) == "" {
		return fmt.Errorf("%w: source locator is required", ErrInvalidConfig)
	}
	return nil
}

// Run is one harmonisation execution against a source.
type Run struct {
	ID        string
	Config    RunConfig
	Status    RunStatus
	StartedAt time.Time
	EndedAt   *time.Time
}

func (r Run) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("run id is required")
	}
	if r.Status == "" {
		return errors.New("status is required")
	}
	return r.Config.Validate()
}
