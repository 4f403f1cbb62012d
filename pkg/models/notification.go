package models

// NotificationSettings controls the daily study reminder
type NotificationSettings struct {
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"` // HH:MM in the configured timezone
}
