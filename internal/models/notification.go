package models

import "time"

// Notification is a message delivered to a user's inbox and mailbox.
type Notification struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
