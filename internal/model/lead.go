// internal/model/lead.go
package model

import "time"

// Person is a contact associated with a lead (may carry its own phone).
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Lead is the shape the dispatch engine needs from the lead store. Status
// holds the stage id within the lead's funnel. Tags may reference tag ids or
// tag names, depending on how the lead was imported.
type Lead struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	Client     string    `db:"client" json:"client"`
	Status     string    `db:"status" json:"status"`
	FunnelID   string    `db:"funnel_id" json:"funnelId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	Tags       []string  `json:"tags,omitempty"`
	AssignedTo *Person   `json:"assignedTo,omitempty"`
	Phone      string    `db:"phone" json:"phone,omitempty"`
	People     []Person  `json:"people,omitempty"`
}

type Tag struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
