package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Quest struct {
	bun.BaseModel `bun:"table:quests,alias:q"`

	ID          int64  `bun:"id,pk,autoincrement"`
	UserID      int64  `bun:"user_id,notnull"`
	Description string `bun:"description,notnull"`
	XPReward    int    `bun:"xp_reward,notnull"`
	Type        string `bun:"type,notnull"`   // daily, weekly
	Status      string `bun:"status,notnull"` // available, active, claimable, completed, cancelled
	Source      string `bun:"source,notnull"` // manual, llm_generated

	ActivatedAt *time.Time `bun:"activated_at"`
	ClaimableAt *time.Time `bun:"claimable_at"`
	CompletedAt *time.Time `bun:"completed_at"`
	CancelledAt *time.Time `bun:"cancelled_at"`
	GeneratedAt time.Time  `bun:"generated_at,notnull"`

	// Audit trail of the generation call that produced this quest.
	PromptSummary string `bun:"prompt_summary"`
	RawResponse   string `bun:"raw_response"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`

	// TempID is the provisional identifier assigned during batch generation
	// so criteria can reference the quest before it has a durable id.
	// Never persisted.
	TempID string `bun:"-"`

	// Relations
	Criteria []*QuestCriterion `bun:"rel:has-many,join:id=quest_id"`
}

// Quest type constants
const (
	QuestTypeDaily  = "daily"
	QuestTypeWeekly = "weekly"
)

// Quest status constants
const (
	QuestStatusAvailable = "available"
	QuestStatusActive    = "active"
	QuestStatusClaimable = "claimable"
	QuestStatusCompleted = "completed"
	QuestStatusCancelled = "cancelled"
)

// Quest source constants
const (
	QuestSourceManual = "manual"
	QuestSourceLLM    = "llm_generated"
)

// ValidQuestType reports whether t is a known quest type.
func ValidQuestType(t string) bool {
	return t == QuestTypeDaily || t == QuestTypeWeekly
}

// ValidQuestStatus reports whether s is a known quest status.
func ValidQuestStatus(s string) bool {
	switch s {
	case QuestStatusAvailable, QuestStatusActive, QuestStatusClaimable,
		QuestStatusCompleted, QuestStatusCancelled:
		return true
	}
	return false
}

// ActiveQuestCap returns the maximum number of simultaneously active quests
// per type. Unknown types get the daily cap.
func ActiveQuestCap(questType string) int {
	if questType == QuestTypeWeekly {
		return 4
	}
	return 2
}

// AllCriteriaMet reports whether every loaded criterion is satisfied.
// Returns false for quests with no criteria loaded.
func (q *Quest) AllCriteriaMet() bool {
	if len(q.Criteria) == 0 {
		return false
	}
	for _, c := range q.Criteria {
		if !c.IsMet {
			return false
		}
	}
	return true
}
