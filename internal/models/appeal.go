package models

import "time"

type Appeal struct {
	ID          int64
	UserID      int64
	PhotoIDs    []int64
	Description string
	Appealed    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
