package models

import "time"

type CalendarInfo struct {
	ID         string `json:"Id"`
	Name       string `json:"Name"`
	IsSelected bool   `json:"IsSelected"`
}

type CalendarEvent struct {
	ID          string    `json:"id"`
	CalendarID  string    `json:"calendar_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}
