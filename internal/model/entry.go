package model

import "time"

// Entry is one key-value document in the persistence store.
type Entry struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}
