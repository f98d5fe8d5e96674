package model

import "time"

// Purchase is the procurement record supplier search enriches. Only the
// fields this subsystem reads and writes are modeled; the rest of the record
// belongs to the procurement service.
type Purchase struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	TechTask  string    `json:"tech_task"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
