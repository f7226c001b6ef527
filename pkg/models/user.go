package models

type User struct {
	ID int64 `json:"id"`
	// Handle is the remote screen name without the leading @
	Handle string `json:"handle,omitempty"`
	Name   string `json:"name,omitempty"`
}
