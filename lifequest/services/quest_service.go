package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lifequest-app/lifequest/lifequest/database/models"
	"github.com/lifequest-app/lifequest/lifequest/database/repositories"
)

// QuestService is the quest state machine:
// available → active → claimable → completed, with active → cancelled as
// the only abnormal exit. All transitions are conditional writes guarded by
// the prior status, so concurrent requests for the same quest resolve to
// exactly one winner.
type QuestService struct {
	questRepo   repositories.QuestRepository
	progression *ProgressionService
}

func NewQuestService(questRepo repositories.QuestRepository, progression *ProgressionService) *QuestService {
	return &QuestService{
		questRepo:   questRepo,
		progression: progression,
	}
}

// loadAndAuthorize re-derives ownership from the quest row on every
// operation. NotFound and NotOwned stay distinct.
func (s *QuestService) loadAndAuthorize(ctx context.Context, userID, questID int64) (*models.Quest, error) {
	quest, err := s.questRepo.GetByID(ctx, questID)
	if err != nil {
		return nil, fmt.Errorf("failed to load quest %d: %w", questID, err)
	}
	if quest == nil {
		return nil, ErrQuestNotFound
	}
	if quest.UserID != userID {
		return nil, ErrQuestNotOwned
	}
	return quest, nil
}

// Activate moves an available quest into the active set, enforcing the
// per-type cap against the current persisted state.
func (s *QuestService) Activate(ctx context.Context, userID, questID int64) (*models.Quest, error) {
	quest, err := s.loadAndAuthorize(ctx, userID, questID)
	if err != nil {
		return nil, err
	}

	if quest.Status != models.QuestStatusAvailable {
		return nil, &WrongStatusError{
			Operation: "activate",
			Expected:  models.QuestStatusAvailable,
			Actual:    quest.Status,
		}
	}

	activeCount, err := s.questRepo.CountActiveByType(ctx, userID, quest.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to count active quests: %w", err)
	}
	if cap := models.ActiveQuestCap(quest.Type); activeCount >= cap {
		return nil, &CapReachedError{QuestType: quest.Type, Cap: cap}
	}

	// The guard re-checks status at write time; losing the race is a
	// conflict, not a validation error.
	updated, err := s.questRepo.UpdateStatus(ctx, questID, models.QuestStatusAvailable, models.QuestStatusActive)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrQuestConflict
	}

	return s.questRepo.GetByID(ctx, questID)
}

// Cancel abandons an active quest.
func (s *QuestService) Cancel(ctx context.Context, userID, questID int64) (*models.Quest, error) {
	quest, err := s.loadAndAuthorize(ctx, userID, questID)
	if err != nil {
		return nil, err
	}

	if quest.Status != models.QuestStatusActive {
		return nil, &WrongStatusError{
			Operation: "cancel",
			Expected:  models.QuestStatusActive,
			Actual:    quest.Status,
		}
	}

	updated, err := s.questRepo.UpdateStatus(ctx, questID, models.QuestStatusActive, models.QuestStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrQuestConflict
	}

	return s.questRepo.GetByID(ctx, questID)
}

type ClaimResult struct {
	Quest *models.Quest
	XP    *XPResult
}

// Claim consumes a claimable quest exactly once and grants its reward.
// The CAS makes double-claims impossible; a failed reward grant is logged
// but never rolls the completion back, so the quest cannot be re-claimed
// to farm the reward twice.
func (s *QuestService) Claim(ctx context.Context, userID, questID int64) (*ClaimResult, error) {
	quest, err := s.loadAndAuthorize(ctx, userID, questID)
	if err != nil {
		return nil, err
	}

	if quest.Status != models.QuestStatusClaimable {
		return nil, &WrongStatusError{
			Operation: "claim",
			Expected:  models.QuestStatusClaimable,
			Actual:    quest.Status,
		}
	}

	updated, err := s.questRepo.UpdateStatus(ctx, questID, models.QuestStatusClaimable, models.QuestStatusCompleted)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, ErrQuestConflict
	}

	result := &ClaimResult{}

	xp, err := s.progression.AwardXP(ctx, userID, quest.XPReward)
	if err != nil {
		slog.Error("Failed to award quest xp",
			slog.Int64("user_id", userID),
			slog.Int64("quest_id", questID),
			slog.Int("xp_reward", quest.XPReward),
			slog.Any("error", err))
	} else {
		result.XP = xp
	}

	result.Quest, err = s.questRepo.GetByID(ctx, questID)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListQuests returns the caller's quests, optionally filtered.
func (s *QuestService) ListQuests(ctx context.Context, userID int64, status, questType string) ([]*models.Quest, error) {
	return s.questRepo.GetUserQuests(ctx, userID, status, questType)
}
