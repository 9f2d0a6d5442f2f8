package models

import (
	"time"

	"github.com/uptrace/bun"
)

type QuestCriterion struct {
	bun.BaseModel `bun:"table:quest_criteria,alias:qc"`

	ID          int64                  `bun:"id,pk,autoincrement"`
	QuestID     int64                  `bun:"quest_id,notnull"`
	Description string                 `bun:"description,notnull"`
	Type        string                 `bun:"type,notnull"`
	Config      map[string]interface{} `bun:"config,type:jsonb"`

	TargetCount     int  `bun:"target_count,notnull,default:1"`
	CurrentProgress int  `bun:"current_progress,notnull,default:0"`
	IsMet           bool `bun:"is_met,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	// TempQuestRef carries the provisional quest id assigned during batch
	// generation, before the parent quest has a durable id. Never persisted.
	TempQuestRef string `bun:"-"`
}

// Criterion type constants
const (
	CriterionTypeHabitCheck   = "habit_check"
	CriterionTypeStepsReach   = "steps_reach"
	CriterionTypeFinanceUnder = "finance_under_allowance"
	CriterionTypePomodoro     = "pomodoro_session"
	CriterionTypeTodoComplete = "todo_complete"
)

// ValidCriterionType reports whether t is in the allow-list.
func ValidCriterionType(t string) bool {
	switch t {
	case CriterionTypeHabitCheck,
		CriterionTypeStepsReach,
		CriterionTypeFinanceUnder,
		CriterionTypePomodoro,
		CriterionTypeTodoComplete:
		return true
	}
	return false
}

// CriterionRequiresTarget reports whether the type needs an explicit
// target_count. finance_under_allowance is a binary pass/fail check.
func CriterionRequiresTarget(t string) bool {
	return t != CriterionTypeFinanceUnder
}

// HabitID extracts the resolved habit identifier from a habit_check config.
// jsonb round-trips numbers as float64.
func (c *QuestCriterion) HabitID() (int64, bool) {
	if c.Config == nil {
		return 0, false
	}
	switch v := c.Config["habit_id"].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	}
	return 0, false
}
