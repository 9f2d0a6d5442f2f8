package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lifequest-app/lifequest/lifequest/database/models"
	"github.com/lifequest-app/lifequest/lifequest/llm"
)

func validBatch() *llm.QuestBatch {
	return &llm.QuestBatch{
		Quests: []llm.ProposedQuest{
			{
				Description: "Step it up",
				XPReward:    40,
				Criteria: []llm.ProposedCriterion{
					{
						Description: "Walk 10000 steps",
						Type:        models.CriterionTypeStepsReach,
						Config:      json.RawMessage(`{"target_count": 10000}`),
					},
				},
			},
			{
				Description: "Morning routine",
				XPReward:    60,
				Criteria: []llm.ProposedCriterion{
					{
						Description: "Run in the morning",
						Type:        models.CriterionTypeHabitCheck,
						Config:      json.RawMessage(`{"habit_name": "Morning Run", "target_count": 1}`),
					},
					{
						Description: "Stay under budget",
						Type:        models.CriterionTypeFinanceUnder,
						Config:      json.RawMessage(`{}`),
					},
				},
			},
		},
	}
}

type generatorFixture struct {
	repo   *fakeQuestRepo
	state  *fakeStateRepo
	users  *fakeUserRepo
	habits *fakeHabitRepo
	client *fakeLLMClient
	gen    *QuestGenerator
}

func newGeneratorFixture() *generatorFixture {
	f := &generatorFixture{
		repo:  newFakeQuestRepo(),
		state: &fakeStateRepo{},
		users: newFakeUserRepo(&models.User{ID: 1, Username: "sam", Level: 3, Timezone: "UTC"}),
		habits: &fakeHabitRepo{habits: []*models.Habit{
			{ID: 11, UserID: 1, Name: "Morning Run", Active: true},
			{ID: 12, UserID: 1, Name: "Read a book", Active: true},
		}},
		client: &fakeLLMClient{batch: validBatch(), raw: `{"quests":[...]}`},
	}
	f.gen = NewQuestGenerator(f.repo, f.state, f.users, f.habits, f.client)
	return f
}

func TestQuestGenerator_Generate(t *testing.T) {
	f := newGeneratorFixture()

	result, err := f.gen.Generate(context.Background(), 1, models.QuestTypeDaily, "UTC")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(result.Quests) != 2 {
		t.Fatalf("Generate() accepted %d quests, want 2", len(result.Quests))
	}
	if result.Dropped != 0 {
		t.Errorf("Generate() dropped = %d, want 0", result.Dropped)
	}

	for _, quest := range result.Quests {
		if quest.Status != models.QuestStatusAvailable {
			t.Errorf("quest status = %q, want available", quest.Status)
		}
		if quest.Source != models.QuestSourceLLM {
			t.Errorf("quest source = %q, want %q", quest.Source, models.QuestSourceLLM)
		}
		if quest.RawResponse == "" {
			t.Error("quest missing raw response audit")
		}
		for _, c := range quest.Criteria {
			if c.QuestID != quest.ID {
				t.Errorf("criterion quest_id = %d, want %d", c.QuestID, quest.ID)
			}
		}
	}

	// The habit name must be resolved to a durable id.
	var habitCriterion *models.QuestCriterion
	for _, quest := range result.Quests {
		for _, c := range quest.Criteria {
			if c.Type == models.CriterionTypeHabitCheck {
				habitCriterion = c
			}
		}
	}
	if habitCriterion == nil {
		t.Fatal("habit_check criterion not persisted")
	}
	if id, ok := habitCriterion.HabitID(); !ok || id != 11 {
		t.Errorf("habit_check habit_id = %d ok = %v, want 11 true", id, ok)
	}

	if len(f.state.touched) != 1 || f.state.touched[0] != models.QuestTypeDaily {
		t.Errorf("generation timestamp touches = %v, want [daily]", f.state.touched)
	}
}

func TestQuestGenerator_Generate_TimezoneRequired(t *testing.T) {
	f := newGeneratorFixture()

	for _, tz := range []string{"", "   ", "Neverland/Nowhere"} {
		_, err := f.gen.Generate(context.Background(), 1, models.QuestTypeDaily, tz)
		if !errors.Is(err, ErrTimezoneRequired) {
			t.Errorf("Generate(tz=%q) error = %v, want ErrTimezoneRequired", tz, err)
		}
	}
	if f.repo.replaceCalls != 0 {
		t.Error("Generate() persisted quests despite rejected timezone")
	}
}

func TestQuestGenerator_Generate_Cooldown(t *testing.T) {
	now := time.Now()
	recent := now.Add(-time.Minute)
	twoDaysAgo := now.Add(-48 * time.Hour)
	lastWeek := now.Add(-8 * 24 * time.Hour)

	tests := []struct {
		name         string
		questType    string
		lastDaily    *time.Time
		lastWeekly   *time.Time
		wantCooldown bool
	}{
		{name: "first daily generation", questType: models.QuestTypeDaily},
		{name: "daily generated today", questType: models.QuestTypeDaily, lastDaily: &recent, wantCooldown: true},
		{name: "daily generated two days ago", questType: models.QuestTypeDaily, lastDaily: &twoDaysAgo},
		{name: "weekly generated this week", questType: models.QuestTypeWeekly, lastWeekly: &recent, wantCooldown: true},
		{name: "weekly generated last week", questType: models.QuestTypeWeekly, lastWeekly: &lastWeek},
		{name: "daily cooldown ignores weekly timestamp", questType: models.QuestTypeDaily, lastWeekly: &recent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGeneratorFixture()
			f.state.state = &models.UserQuestState{
				UserID:                1,
				LastDailyGeneratedAt:  tt.lastDaily,
				LastWeeklyGeneratedAt: tt.lastWeekly,
			}

			_, err := f.gen.Generate(context.Background(), 1, tt.questType, "UTC")

			var cooldown *CooldownError
			if tt.wantCooldown {
				if !errors.As(err, &cooldown) {
					t.Fatalf("Generate() error = %v, want CooldownError", err)
				}
				if cooldown.NextAllowedAt.Before(now) {
					t.Errorf("NextAllowedAt = %v, want future", cooldown.NextAllowedAt)
				}
				if len(f.client.prompts) != 0 {
					t.Error("model called despite cooldown")
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
		})
	}
}

func TestQuestGenerator_Generate_UpstreamFailure(t *testing.T) {
	f := newGeneratorFixture()
	f.client.err = errors.New("model timeout")

	_, err := f.gen.Generate(context.Background(), 1, models.QuestTypeDaily, "UTC")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("Generate() error = %v, want ErrUpstream", err)
	}
	if f.repo.replaceCalls != 0 {
		t.Error("storage touched despite upstream failure")
	}
}

func TestQuestGenerator_Generate_PartialAcceptance(t *testing.T) {
	f := newGeneratorFixture()
	f.client.batch.Quests = append(f.client.batch.Quests,
		llm.ProposedQuest{
			Description: "Bad quest",
			XPReward:    30,
			Criteria: []llm.ProposedCriterion{
				{Type: "summon_dragon", Config: json.RawMessage(`{"target_count": 1}`)},
			},
		},
		llm.ProposedQuest{
			Description: "Unknown habit quest",
			XPReward:    30,
			Criteria: []llm.ProposedCriterion{
				{Type: models.CriterionTypeHabitCheck, Config: json.RawMessage(`{"habit_name": "Juggling", "target_count": 1}`)},
			},
		},
	)

	result, err := f.gen.Generate(context.Background(), 1, models.QuestTypeDaily, "UTC")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(result.Quests) != 2 {
		t.Errorf("Generate() accepted %d quests, want 2", len(result.Quests))
	}
	if result.Dropped != 2 {
		t.Errorf("Generate() dropped = %d, want 2", result.Dropped)
	}
	if len(result.Problems) != 2 {
		t.Errorf("Generate() problems = %v, want 2 entries", result.Problems)
	}
}

func TestQuestGenerator_Generate_NothingValid(t *testing.T) {
	f := newGeneratorFixture()
	f.client.batch = &llm.QuestBatch{
		Quests: []llm.ProposedQuest{
			{Description: "No criteria", XPReward: 20},
			{Description: "", XPReward: 20},
			{Description: "Bad xp", XPReward: 0, Criteria: []llm.ProposedCriterion{
				{Type: models.CriterionTypeStepsReach, Config: json.RawMessage(`{"target_count": 1}`)},
			}},
		},
	}

	_, err := f.gen.Generate(context.Background(), 1, models.QuestTypeDaily, "UTC")

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Generate() error = %v, want GenerationError", err)
	}
	if len(genErr.Problems) != 3 {
		t.Errorf("GenerationError.Problems = %v, want 3 entries", genErr.Problems)
	}
	if f.repo.replaceCalls != 0 {
		t.Error("storage touched despite fully rejected batch")
	}
}

func TestQuestGenerator_Generate_ReplacesAvailable(t *testing.T) {
	f := newGeneratorFixture()
	stale := seedQuest(f.repo, 1, models.QuestTypeDaily, models.QuestStatusAvailable)
	active := seedQuest(f.repo, 1, models.QuestTypeDaily, models.QuestStatusActive)
	weekly := seedQuest(f.repo, 1, models.QuestTypeWeekly, models.QuestStatusAvailable)

	_, err := f.gen.Generate(context.Background(), 1, models.QuestTypeDaily, "UTC")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, ok := f.repo.quests[stale.ID]; ok {
		t.Error("stale available daily quest should be replaced")
	}
	if _, ok := f.repo.quests[active.ID]; !ok {
		t.Error("active quest must survive regeneration")
	}
	if _, ok := f.repo.quests[weekly.ID]; !ok {
		t.Error("available weekly quest must survive daily regeneration")
	}
}

func TestQuestGenerator_Generate_FailedSwapKeepsPriorOffers(t *testing.T) {
	f := newGeneratorFixture()
	stale := seedQuest(f.repo, 1, models.QuestTypeDaily, models.QuestStatusAvailable)
	f.repo.replaceErr = errors.New("insert failed")

	_, err := f.gen.Generate(context.Background(), 1, models.QuestTypeDaily, "UTC")
	if err == nil {
		t.Fatal("Generate() succeeded despite persistence failure")
	}

	if _, ok := f.repo.quests[stale.ID]; !ok {
		t.Error("prior available quest lost after failed swap")
	}
	if len(f.state.touched) != 0 {
		t.Error("generation timestamp recorded despite persistence failure")
	}
}

func TestQuestGenerator_Generate_BookkeepingFailureIsNonFatal(t *testing.T) {
	f := newGeneratorFixture()
	f.state.touchErr = errors.New("state table locked")

	result, err := f.gen.Generate(context.Background(), 1, models.QuestTypeDaily, "UTC")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(result.Quests) != 2 {
		t.Errorf("Generate() accepted %d quests, want 2", len(result.Quests))
	}
}

func TestQuestGenerator_Generate_XPRewardClamped(t *testing.T) {
	f := newGeneratorFixture()
	f.client.batch = &llm.QuestBatch{
		Quests: []llm.ProposedQuest{
			{
				Description: "Jackpot",
				XPReward:    100000,
				Criteria: []llm.ProposedCriterion{
					{Type: models.CriterionTypeStepsReach, Config: json.RawMessage(`{"target_count": 100}`)},
				},
			},
		},
	}

	result, err := f.gen.Generate(context.Background(), 1, models.QuestTypeDaily, "UTC")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got := result.Quests[0].XPReward; got != maxXPReward {
		t.Errorf("xp reward = %d, want clamped to %d", got, maxXPReward)
	}
}

func TestResolveHabit(t *testing.T) {
	habits := []*models.Habit{
		{ID: 1, Name: "Morning Run"},
		{ID: 2, Name: "Evening Run"},
		{ID: 3, Name: "Meditate"},
	}

	tests := []struct {
		name   string
		input  string
		wantID int64
		wantOK bool
	}{
		{name: "exact", input: "Meditate", wantID: 3, wantOK: true},
		{name: "case insensitive", input: "morning run", wantID: 1, wantOK: true},
		{name: "surrounding space", input: "  Meditate  ", wantID: 3, wantOK: true},
		{name: "unique fuzzy", input: "Meditat", wantID: 3, wantOK: true},
		{name: "ambiguous fuzzy", input: "Run", wantOK: false},
		{name: "unknown", input: "Juggling", wantOK: false},
		{name: "empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			habit, ok := resolveHabit(tt.input, habits)
			if ok != tt.wantOK {
				t.Fatalf("resolveHabit(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && habit.ID != tt.wantID {
				t.Errorf("resolveHabit(%q) id = %d, want %d", tt.input, habit.ID, tt.wantID)
			}
		})
	}
}
