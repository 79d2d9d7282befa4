package domain

import "time"

// TrackingRun describes one execution of the tracking stage. It is stored
// alongside the events it produced.
type TrackingRun struct {
	ID              string      `json:"id"`
	Dataset         string      `json:"dataset"`
	Region          string      `json:"region"`
	StartDate       time.Time   `json:"start_date"`
	EndDate         time.Time   `json:"end_date"`
	Days            int         `json:"days"`
	IncompleteDates []time.Time `json:"incomplete_dates,omitempty"`
	Events          int         `json:"events"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      time.Time   `json:"finished_at"`
}

// Complete reports whether every date of the window had a valid artifact.
func (r TrackingRun) Complete() bool { return len(r.IncompleteDates) == 0 }
