package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lifequest-app/lifequest/lifequest/database/models"
	"github.com/lifequest-app/lifequest/lifequest/database/repositories"
	"github.com/lifequest-app/lifequest/lifequest/timeutil"
)

// ProgressEvent carries the payload of one activity report. Which fields
// matter depends on the criterion type: habit_check reads HabitID and Date,
// count-based criteria read Count, finance_under_allowance reads Spent and
// Allowance.
type ProgressEvent struct {
	HabitID   int64
	Date      time.Time
	Count     int
	Spent     float64
	Allowance float64
}

// QuestTracker fans activity events out to the matching criteria of a
// user's active quests and promotes quests to claimable once every
// criterion is met.
type QuestTracker struct {
	questRepo repositories.QuestRepository
}

func NewQuestTracker(questRepo repositories.QuestRepository) *QuestTracker {
	return &QuestTracker{questRepo: questRepo}
}

// ReportProgress applies one event against all matching unmet criteria on
// the user's active quests. Events that match nothing are a no-op, not an
// error: users do plenty of things no quest cares about.
func (t *QuestTracker) ReportProgress(ctx context.Context, userID int64, criterionType string, event ProgressEvent, timezone string) error {
	if !models.ValidCriterionType(criterionType) {
		return fmt.Errorf("unknown criterion type %q", criterionType)
	}

	quests, err := t.questRepo.GetActiveQuestsWithCriteria(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load active quests: %w", err)
	}

	for _, quest := range quests {
		touched := false
		for _, criterion := range quest.Criteria {
			if criterion.Type != criterionType || criterion.IsMet {
				continue
			}

			applied, err := t.applyEvent(ctx, criterion, event, timezone)
			if err != nil {
				return err
			}
			if applied {
				touched = true
			}
		}

		if !touched {
			continue
		}

		if err := t.promoteIfComplete(ctx, quest.ID); err != nil {
			return err
		}
	}

	return nil
}

// applyEvent updates a single criterion according to its type. The caller
// has already filtered by type and met flag; this decides whether the
// event is relevant (habit id match, local-day match) and performs the
// write. Returns whether a write happened.
func (t *QuestTracker) applyEvent(ctx context.Context, criterion *models.QuestCriterion, event ProgressEvent, timezone string) (bool, error) {
	switch criterion.Type {
	case models.CriterionTypeHabitCheck:
		habitID, ok := criterion.HabitID()
		if !ok || habitID != event.HabitID {
			return false, nil
		}
		if !event.Date.IsZero() {
			loc, err := timeutil.LoadLocation(timezone)
			if err != nil {
				// A timezone that does not resolve cannot anchor the day
				// check, so the event cannot be trusted as same-day.
				return false, nil
			}
			if !timeutil.OnLocalDay(event.Date, time.Now(), loc) {
				// Back-dated check-ins count toward habit history, not
				// toward today's quest.
				return false, nil
			}
		}
		_, err := t.questRepo.IncrementCriterionProgress(ctx, criterion.ID, 1)
		return err == nil, wrapProgressErr(err)

	case models.CriterionTypeStepsReach, models.CriterionTypePomodoro, models.CriterionTypeTodoComplete:
		if event.Count <= 0 {
			return false, nil
		}
		_, err := t.questRepo.IncrementCriterionProgress(ctx, criterion.ID, event.Count)
		return err == nil, wrapProgressErr(err)

	case models.CriterionTypeFinanceUnder:
		met := event.Spent <= event.Allowance
		_, err := t.questRepo.SetCriterionOutcome(ctx, criterion.ID, met)
		return err == nil, wrapProgressErr(err)
	}

	return false, nil
}

func wrapProgressErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to apply progress: %w", err)
}

// promoteIfComplete flips a quest to claimable once no unmet criteria
// remain. The conditional update tolerates races: if two events complete
// the last two criteria at once, exactly one transition lands and the
// loser is a harmless no-op.
func (t *QuestTracker) promoteIfComplete(ctx context.Context, questID int64) error {
	unmet, err := t.questRepo.CountUnmetCriteria(ctx, questID)
	if err != nil {
		return err
	}
	if unmet > 0 {
		return nil
	}

	promoted, err := t.questRepo.UpdateStatus(ctx, questID, models.QuestStatusActive, models.QuestStatusClaimable)
	if err != nil {
		return err
	}
	if promoted {
		slog.Info("Quest ready to claim",
			slog.Int64("quest_id", questID))
	}

	return nil
}

// Fire-and-forget wrappers for callers that must not fail their own
// operation on a tracking hiccup (a habit check-in succeeds even when the
// quest update does not).

func (t *QuestTracker) TrackHabitCheck(ctx context.Context, userID, habitID int64, date time.Time, timezone string) {
	t.trackQuietly(ctx, userID, models.CriterionTypeHabitCheck,
		ProgressEvent{HabitID: habitID, Date: date}, timezone)
}

func (t *QuestTracker) TrackSteps(ctx context.Context, userID int64, steps int, timezone string) {
	t.trackQuietly(ctx, userID, models.CriterionTypeStepsReach,
		ProgressEvent{Count: steps}, timezone)
}

func (t *QuestTracker) TrackPomodoro(ctx context.Context, userID int64, sessions int, timezone string) {
	t.trackQuietly(ctx, userID, models.CriterionTypePomodoro,
		ProgressEvent{Count: sessions}, timezone)
}

func (t *QuestTracker) TrackTodoComplete(ctx context.Context, userID int64, completed int, timezone string) {
	t.trackQuietly(ctx, userID, models.CriterionTypeTodoComplete,
		ProgressEvent{Count: completed}, timezone)
}

func (t *QuestTracker) TrackFinance(ctx context.Context, userID int64, spent, allowance float64, timezone string) {
	t.trackQuietly(ctx, userID, models.CriterionTypeFinanceUnder,
		ProgressEvent{Spent: spent, Allowance: allowance}, timezone)
}

func (t *QuestTracker) trackQuietly(ctx context.Context, userID int64, criterionType string, event ProgressEvent, timezone string) {
	if err := t.ReportProgress(ctx, userID, criterionType, event, timezone); err != nil {
		slog.Error("Failed to track quest progress",
			slog.Int64("user_id", userID),
			slog.String("criterion_type", criterionType),
			slog.Any("error", err))
	}
}
