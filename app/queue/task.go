// Package queue provides the delayed task queue that drives campaign dispatch
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskKind selects the handler that runs a task
type TaskKind string

const (
	TaskKindDispatch TaskKind = "dispatch"
	TaskKindSend     TaskKind = "send"
	TaskKindCheck    TaskKind = "check"
)

// Valid checks if the kind is known
func (k TaskKind) Valid() bool {
	switch k {
	case TaskKindDispatch, TaskKindSend, TaskKindCheck:
		return true
	default:
		return false
	}
}

// Task is a unit of delayed work. Attempt counts send attempts starting at 1 and
// Check numbers completion checks starting at 1.
type Task struct {
	ID         string   `json:"id"`
	Kind       TaskKind `json:"kind"`
	CampaignID uint     `json:"campaign_id"`
	ContactID  uint     `json:"contact_id,omitempty"`
	Attempt    int      `json:"attempt,omitempty"`
	Check      int      `json:"check,omitempty"`
}

// NewDispatchTask builds the task that plans a campaign's sends
func NewDispatchTask(campaignID uint) Task {
	return Task{ID: uuid.NewString(), Kind: TaskKindDispatch, CampaignID: campaignID}
}

// NewSendTask builds the task that delivers one message
func NewSendTask(campaignID, contactID uint, attempt int) Task {
	return Task{ID: uuid.NewString(), Kind: TaskKindSend, CampaignID: campaignID, ContactID: contactID, Attempt: attempt}
}

// NewCheckTask builds a completion check
func NewCheckTask(campaignID uint, check int) Task {
	return Task{ID: uuid.NewString(), Kind: TaskKindCheck, CampaignID: campaignID, Check: check}
}

// Retry returns a copy of a send task for the next attempt
func (t Task) Retry() Task {
	next := t
	next.ID = uuid.NewString()
	next.Attempt = t.Attempt + 1
	return next
}

// NextCheck returns a copy of a check task for the following check
func (t Task) NextCheck() Task {
	next := t
	next.ID = uuid.NewString()
	next.Check = t.Check + 1
	return next
}

func (t Task) String() string {
	switch t.Kind {
	case TaskKindSend:
		return fmt.Sprintf("send campaign=%d contact=%d attempt=%d", t.CampaignID, t.ContactID, t.Attempt)
	case TaskKindCheck:
		return fmt.Sprintf("check campaign=%d check=%d", t.CampaignID, t.Check)
	default:
		return fmt.Sprintf("%s campaign=%d", t.Kind, t.CampaignID)
	}
}

func encodeTask(t Task) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}
	return string(b), nil
}

func decodeTask(s string) (Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return Task{}, fmt.Errorf("failed to decode task: %w", err)
	}
	if !t.Kind.Valid() {
		return Task{}, fmt.Errorf("unknown task kind: %q", t.Kind)
	}
	return t, nil
}

// Queue accepts tasks to run no earlier than delay from now
type Queue interface {
	Enqueue(ctx context.Context, task Task, delay time.Duration) error
}

// Source hands out due tasks. A claimed task is removed and will not be claimed again.
type Source interface {
	Claim(ctx context.Context, now time.Time, limit int) ([]Task, error)
}

// Backend is a queue that workers can also drain
type Backend interface {
	Queue
	Source
}
