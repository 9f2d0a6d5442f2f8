package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int64  `bun:"id,pk,autoincrement"`
	Username string `bun:"username,notnull,unique"`
	XP       int64  `bun:"xp,notnull,default:0"`
	Level    int    `bun:"level,notnull,default:1"`
	Timezone string `bun:"timezone"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
