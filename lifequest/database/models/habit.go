package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Habit is owned by the habit tracker subsystem; quests only read it to
// resolve habit_check criteria at generation time.
type Habit struct {
	bun.BaseModel `bun:"table:habits,alias:h"`

	ID     int64  `bun:"id,pk,autoincrement"`
	UserID int64  `bun:"user_id,notnull"`
	Name   string `bun:"name,notnull"`
	Active bool   `bun:"active,notnull,default:true"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
