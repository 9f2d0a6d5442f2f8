package services

import (
	"context"
	"fmt"
	"time"

	"github.com/lifequest-app/lifequest/lifequest/database/models"
	"github.com/lifequest-app/lifequest/lifequest/llm"
)

// fakeQuestRepo is an in-memory QuestRepository mirroring the conditional
// update and batch-insert semantics of the real one.
type fakeQuestRepo struct {
	quests map[int64]*models.Quest
	nextID int64

	forceConflict bool
	replaceCalls  int
	replaceErr    error
}

func newFakeQuestRepo() *fakeQuestRepo {
	return &fakeQuestRepo{quests: map[int64]*models.Quest{}, nextID: 1}
}

func (f *fakeQuestRepo) add(q *models.Quest) *models.Quest {
	if q.ID == 0 {
		q.ID = f.nextID
		f.nextID++
	} else if q.ID >= f.nextID {
		f.nextID = q.ID + 1
	}
	for _, c := range q.Criteria {
		if c.ID == 0 {
			c.ID = f.nextID
			f.nextID++
		}
		c.QuestID = q.ID
	}
	f.quests[q.ID] = q
	return q
}

func (f *fakeQuestRepo) criterion(id int64) *models.QuestCriterion {
	for _, q := range f.quests {
		for _, c := range q.Criteria {
			if c.ID == id {
				return c
			}
		}
	}
	return nil
}

func (f *fakeQuestRepo) GetByID(_ context.Context, questID int64) (*models.Quest, error) {
	q, ok := f.quests[questID]
	if !ok {
		return nil, nil
	}
	return q, nil
}

func (f *fakeQuestRepo) GetUserQuests(_ context.Context, userID int64, status, questType string) ([]*models.Quest, error) {
	var out []*models.Quest
	for _, q := range f.quests {
		if q.UserID != userID {
			continue
		}
		if status != "" && q.Status != status {
			continue
		}
		if questType != "" && q.Type != questType {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeQuestRepo) GetActiveQuestsWithCriteria(ctx context.Context, userID int64) ([]*models.Quest, error) {
	return f.GetUserQuests(ctx, userID, models.QuestStatusActive, "")
}

func (f *fakeQuestRepo) CountActiveByType(_ context.Context, userID int64, questType string) (int, error) {
	count := 0
	for _, q := range f.quests {
		if q.UserID == userID && q.Type == questType && q.Status == models.QuestStatusActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeQuestRepo) UpdateStatus(_ context.Context, questID int64, from, to string) (bool, error) {
	if f.forceConflict {
		return false, nil
	}
	q, ok := f.quests[questID]
	if !ok || q.Status != from {
		return false, nil
	}
	q.Status = to
	now := time.Now()
	switch to {
	case models.QuestStatusActive:
		q.ActivatedAt = &now
	case models.QuestStatusClaimable:
		q.ClaimableAt = &now
	case models.QuestStatusCompleted:
		q.CompletedAt = &now
	case models.QuestStatusCancelled:
		q.CancelledAt = &now
	}
	return true, nil
}

func (f *fakeQuestRepo) ReplaceAvailableBatch(_ context.Context, userID int64, questType string, quests []*models.Quest) (int64, error) {
	f.replaceCalls++
	if f.replaceErr != nil {
		// Transactional: a failed swap leaves existing quests untouched.
		return 0, f.replaceErr
	}

	var deleted int64
	for id, q := range f.quests {
		if q.UserID == userID && q.Type == questType && q.Status == models.QuestStatusAvailable {
			delete(f.quests, id)
			deleted++
		}
	}

	idByTemp := map[string]int64{}
	for _, q := range quests {
		q.ID = f.nextID
		f.nextID++
		if q.TempID != "" {
			idByTemp[q.TempID] = q.ID
		}
		f.quests[q.ID] = q
	}
	for _, q := range quests {
		for _, c := range q.Criteria {
			ref := c.TempQuestRef
			if ref == "" {
				ref = q.TempID
			}
			id, ok := idByTemp[ref]
			if !ok {
				return 0, fmt.Errorf("criterion references unknown quest %q", ref)
			}
			c.ID = f.nextID
			f.nextID++
			c.QuestID = id
		}
	}
	return deleted, nil
}

func (f *fakeQuestRepo) GetCriteria(_ context.Context, questID int64) ([]*models.QuestCriterion, error) {
	q, ok := f.quests[questID]
	if !ok {
		return nil, nil
	}
	return q.Criteria, nil
}

func (f *fakeQuestRepo) IncrementCriterionProgress(_ context.Context, criterionID int64, delta int) (*models.QuestCriterion, error) {
	c := f.criterion(criterionID)
	if c == nil {
		return nil, fmt.Errorf("criterion %d not found", criterionID)
	}
	next := c.CurrentProgress + delta
	c.IsMet = next >= c.TargetCount
	if next > c.TargetCount {
		next = c.TargetCount
	}
	c.CurrentProgress = next
	return c, nil
}

func (f *fakeQuestRepo) SetCriterionOutcome(_ context.Context, criterionID int64, met bool) (*models.QuestCriterion, error) {
	c := f.criterion(criterionID)
	if c == nil {
		return nil, fmt.Errorf("criterion %d not found", criterionID)
	}
	c.IsMet = met
	if met {
		c.CurrentProgress = c.TargetCount
	}
	return c, nil
}

func (f *fakeQuestRepo) CountUnmetCriteria(_ context.Context, questID int64) (int, error) {
	q, ok := f.quests[questID]
	if !ok {
		return 0, nil
	}
	count := 0
	for _, c := range q.Criteria {
		if !c.IsMet {
			count++
		}
	}
	return count, nil
}

type fakeUserRepo struct {
	users map[int64]*models.User

	addXPErr error
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: map[int64]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, userID int64) (*models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %d", userID)
	}
	return u, nil
}

func (f *fakeUserRepo) AddXP(_ context.Context, userID int64, amount int) (*models.User, error) {
	if f.addXPErr != nil {
		return nil, f.addXPErr
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %d", userID)
	}
	u.XP += int64(amount)
	return u, nil
}

func (f *fakeUserRepo) UpdateLevel(_ context.Context, userID int64, level int) error {
	u, ok := f.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %d", userID)
	}
	u.Level = level
	return nil
}

type fakeHabitRepo struct {
	habits []*models.Habit
}

func (f *fakeHabitRepo) Create(_ context.Context, habit *models.Habit) error {
	f.habits = append(f.habits, habit)
	return nil
}

func (f *fakeHabitRepo) GetActiveByUserID(_ context.Context, userID int64) ([]*models.Habit, error) {
	var out []*models.Habit
	for _, h := range f.habits {
		if h.UserID == userID && h.Active {
			out = append(out, h)
		}
	}
	return out, nil
}

type fakeStateRepo struct {
	state       *models.UserQuestState
	touched     []string
	touchErr    error
	lastTouchAt time.Time
}

func (f *fakeStateRepo) Get(_ context.Context, _ int64) (*models.UserQuestState, error) {
	return f.state, nil
}

func (f *fakeStateRepo) TouchGenerated(_ context.Context, _ int64, questType string, at time.Time) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, questType)
	f.lastTouchAt = at
	return nil
}

type fakeLLMClient struct {
	batch *llm.QuestBatch
	raw   string
	err   error

	prompts []string
}

func (f *fakeLLMClient) GenerateQuests(_ context.Context, prompt string) (*llm.QuestBatch, string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.batch, f.raw, nil
}
