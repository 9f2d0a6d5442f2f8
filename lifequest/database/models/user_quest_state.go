package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UserQuestState is one row per user holding generation cooldown bookkeeping.
// Created lazily on first generation, never deleted during normal operation.
type UserQuestState struct {
	bun.BaseModel `bun:"table:user_quest_states,alias:uqs"`

	UserID                int64      `bun:"user_id,pk"`
	LastDailyGeneratedAt  *time.Time `bun:"last_daily_generated_at"`
	LastWeeklyGeneratedAt *time.Time `bun:"last_weekly_generated_at"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// LastGeneratedAt returns the generation timestamp for the given quest type.
func (s *UserQuestState) LastGeneratedAt(questType string) *time.Time {
	if questType == QuestTypeWeekly {
		return s.LastWeeklyGeneratedAt
	}
	return s.LastDailyGeneratedAt
}
