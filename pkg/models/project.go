package models

type Project struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	CategoryID  *int64  `json:"category_id,omitempty"`
	Tasks       []*Task `json:"tasks,omitempty"`

	// CategoryTitle is a helper field for joined queries
	CategoryTitle string `json:"category_title,omitempty"`
}

type Category struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Color string `json:"color"`
}

// CategoryCount is the number of tasks filed under a category's projects.
type CategoryCount struct {
	Title string `json:"title"`
	Color string `json:"color"`
	Count int    `json:"count"`
}
