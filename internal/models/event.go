package models

import "time"

// Event is a calendar-style record supplied by an external collaborator.
// Tasks are derived from events; fields the scheduler does not understand
// travel in Extra untouched.
type Event struct {
	ID        string
	ProjectID string
	Title     string
	Start     time.Time
	End       time.Time
	Trade     string
	Location  string
	DependsOn []string
	Resources []string
	Cancelled bool
	Extra     map[string]string
}
