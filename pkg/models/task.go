package models

import "time"

type Task struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	IsCompleted       bool       `json:"is_completed"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	Priority          int        `json:"priority"`
	PriorityReasoning string     `json:"priority_reasoning,omitempty"`
	ProjectID         *int64     `json:"project_id,omitempty"`
	AssistType        AssistType `json:"assist_type"`
	AssistData        string     `json:"assist_data,omitempty"`

	// ProjectName is a helper field for joined queries
	ProjectName string `json:"project_name,omitempty"`

	// Transient flags, never persisted.
	IsRecommendation bool `json:"is_recommendation,omitempty"`
	IsPriority       bool `json:"is_priority,omitempty"`
}

// HasAssist reports whether the task carries a quick action.
func (t *Task) HasAssist() bool {
	return t.AssistType != AssistNone
}

// IsDueOn reports whether the task is due on the calendar day of ref.
func (t *Task) IsDueOn(ref time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	y1, m1, d1 := t.DueDate.In(ref.Location()).Date()
	y2, m2, d2 := ref.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Clone returns a copy safe to hand to callers outside the owning goroutine.
func (t *Task) Clone() *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.ProjectID != nil {
		p := *t.ProjectID
		c.ProjectID = &p
	}
	return &c
}
