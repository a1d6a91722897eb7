package models

type ExtractedTask struct {
	Title   string `json:"title"`
	DueDate string `json:"dueDate,omitempty"`
}

type ExtractedProject struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Tasks       []ExtractedTask `json:"tasks"`
}

// ExtractionResult holds projects and tasks pulled from a transcript or photo.
type ExtractionResult struct {
	Projects        []ExtractedProject `json:"projects"`
	StandaloneTasks []ExtractedTask    `json:"standaloneTasks"`
}

// IsEmpty reports whether nothing was extracted.
func (r *ExtractionResult) IsEmpty() bool {
	return len(r.Projects) == 0 && len(r.StandaloneTasks) == 0
}
