package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for the quest operations. Handlers map these onto the
// wire; services wrap them with context via %w.
var (
	ErrQuestNotFound    = errors.New("quest not found")
	ErrQuestNotOwned    = errors.New("quest does not belong to caller")
	ErrQuestConflict    = errors.New("quest changed concurrently, re-fetch and retry")
	ErrTimezoneRequired = errors.New("timezone is required")
	ErrUpstream         = errors.New("quest generation is temporarily unavailable")
)

// WrongStatusError rejects a transition attempted from the wrong state,
// e.g. claiming a quest that is not claimable yet.
type WrongStatusError struct {
	Operation string
	Expected  string
	Actual    string
}

func (e *WrongStatusError) Error() string {
	return fmt.Sprintf("cannot %s quest in status %q (must be %q)", e.Operation, e.Actual, e.Expected)
}

// CapReachedError rejects activation past the per-type active-quest cap.
type CapReachedError struct {
	QuestType string
	Cap       int
}

func (e *CapReachedError) Error() string {
	return fmt.Sprintf("active %s quest limit reached (%d)", e.QuestType, e.Cap)
}

// CooldownError rejects generation requested before the window elapsed.
type CooldownError struct {
	QuestType     string
	NextAllowedAt time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s quests already generated, next batch allowed at %s",
		e.QuestType, e.NextAllowedAt.Format(time.RFC3339))
}

// GenerationError reports a batch where every proposed quest failed
// validation. Problems are human-readable, one per rejection.
type GenerationError struct {
	Problems []string
}

func (e *GenerationError) Error() string {
	return "no generated quest passed validation: " + strings.Join(e.Problems, "; ")
}
