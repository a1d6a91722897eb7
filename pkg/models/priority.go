package models

import "encoding/json"

// PriorityTask is one entry of the AI's chosen subset.
type PriorityTask struct {
	Title             string     `json:"title"`
	PriorityReasoning string     `json:"priorityReasoning"`
	AssistType        AssistType `json:"assistType"`
	AssistData        string     `json:"assistData"`
}

// PriorityTaskResult is the structured answer of a prioritization call.
type PriorityTaskResult struct {
	Tasks                []PriorityTask `json:"tasks"`
	PersonalizedGreeting string         `json:"personalized_greeting"`
}

// UnmarshalJSON accepts both the tasks/personalized_greeting shape and the
// priorityTasks/personalizedGreeting shape.
func (r *PriorityTaskResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Tasks                []PriorityTask `json:"tasks"`
		PriorityTasks        []PriorityTask `json:"priorityTasks"`
		PersonalizedGreeting string         `json:"personalized_greeting"`
		Greeting             string         `json:"personalizedGreeting"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Tasks = raw.Tasks
	if len(r.Tasks) == 0 {
		r.Tasks = raw.PriorityTasks
	}
	r.PersonalizedGreeting = raw.PersonalizedGreeting
	if r.PersonalizedGreeting == "" {
		r.PersonalizedGreeting = raw.Greeting
	}
	return nil
}

// PriorityTaskView projects a task into the priority list. Task fields are
// resolved from the owning task map, never copied.
type PriorityTaskView struct {
	TaskID             int64  `json:"task_id"`
	ProjectName        string `json:"project_name"`
	IsShowingReasoning bool   `json:"is_showing_reasoning"`

	Task *Task `json:"task,omitempty"`
}

// AssistClassification is the structured answer of a classification call.
type AssistClassification struct {
	AssistType AssistType `json:"assistType"`
	AssistData string     `json:"assistData"`
}
