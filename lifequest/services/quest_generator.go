package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/errgroup"

	"github.com/lifequest-app/lifequest/lifequest/database/models"
	"github.com/lifequest-app/lifequest/lifequest/database/repositories"
	"github.com/lifequest-app/lifequest/lifequest/llm"
	"github.com/lifequest-app/lifequest/lifequest/timeutil"
)

const (
	dailyQuestCount  = 3
	weeklyQuestCount = 3

	maxCriteriaPerQuest = 3
	maxXPReward         = 250
)

// QuestGenerator orchestrates one generation run: cooldown gate, context
// gathering, prompt construction, the single model call, validation of the
// untrusted output, and transactional persistence.
type QuestGenerator struct {
	questRepo repositories.QuestRepository
	stateRepo repositories.QuestStateRepository
	userRepo  repositories.UserRepository
	habitRepo repositories.HabitRepository
	client    llm.Client
}

func NewQuestGenerator(
	questRepo repositories.QuestRepository,
	stateRepo repositories.QuestStateRepository,
	userRepo repositories.UserRepository,
	habitRepo repositories.HabitRepository,
	client llm.Client,
) *QuestGenerator {
	return &QuestGenerator{
		questRepo: questRepo,
		stateRepo: stateRepo,
		userRepo:  userRepo,
		habitRepo: habitRepo,
		client:    client,
	}
}

type GenerationResult struct {
	Quests   []*models.Quest
	Dropped  int
	Problems []string
}

// Generate runs the full pipeline for one user and quest type. An upstream
// or total-validation failure leaves storage untouched; partially valid
// batches are accepted with the rejects reported in Problems.
func (g *QuestGenerator) Generate(ctx context.Context, userID int64, questType, timezone string) (*GenerationResult, error) {
	if !models.ValidQuestType(questType) {
		return nil, fmt.Errorf("unknown quest type %q", questType)
	}

	if strings.TrimSpace(timezone) == "" {
		return nil, ErrTimezoneRequired
	}
	loc, err := timeutil.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timezone %q", ErrTimezoneRequired, timezone)
	}

	now := time.Now()
	if err := g.checkCooldown(ctx, userID, questType, now, loc); err != nil {
		return nil, err
	}

	// Context assembly: level and habit names are independent reads.
	var user *models.User
	var habits []*models.Habit

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		user, err = g.userRepo.GetByID(egCtx, userID)
		return err
	})
	eg.Go(func() error {
		var err error
		habits, err = g.habitRepo.GetActiveByUserID(egCtx, userID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to gather generation context: %w", err)
	}

	habitNames := make([]string, len(habits))
	for i, h := range habits {
		habitNames[i] = h.Name
	}

	count := dailyQuestCount
	if questType == models.QuestTypeWeekly {
		count = weeklyQuestCount
	}

	prompt := llm.BuildPrompt(llm.PromptContext{
		QuestType:  questType,
		QuestCount: count,
		UserLevel:  user.Level,
		HabitNames: habitNames,
	})

	batch, raw, err := g.client.GenerateQuests(ctx, prompt)
	if err != nil {
		slog.Error("Quest generation failed upstream",
			slog.String("type", "llm"),
			slog.Int64("user_id", userID),
			slog.String("quest_type", questType),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	quests, problems := g.validateBatch(batch, habits, userID, questType, now, prompt, raw)
	if len(quests) == 0 {
		return nil, &GenerationError{Problems: problems}
	}

	// Regeneration replaces stale offers in one transaction; quests the
	// user already picked up (or finished) are never touched, and a failed
	// insert leaves the prior offers in place.
	deleted, err := g.questRepo.ReplaceAvailableBatch(ctx, userID, questType, quests)
	if err != nil {
		return nil, fmt.Errorf("failed to persist quest batch: %w", err)
	}
	if deleted > 0 {
		slog.Debug("Replaced stale available quests",
			slog.Int64("user_id", userID),
			slog.String("quest_type", questType),
			slog.Int64("deleted", deleted))
	}

	// Cooldown bookkeeping is best effort: a miss here only means the next
	// run re-derives the window from an older timestamp.
	if err := g.stateRepo.TouchGenerated(ctx, userID, questType, now); err != nil {
		slog.Warn("Failed to record generation timestamp",
			slog.Int64("user_id", userID),
			slog.String("quest_type", questType),
			slog.Any("error", err))
	}

	slog.Info("Quest batch generated",
		slog.Int64("user_id", userID),
		slog.String("quest_type", questType),
		slog.Int("accepted", len(quests)),
		slog.Int("dropped", len(batch.Quests)-len(quests)))

	return &GenerationResult{
		Quests:   quests,
		Dropped:  len(batch.Quests) - len(quests),
		Problems: problems,
	}, nil
}

// checkCooldown gates generation on the user's local calendar. Daily
// batches reset at local midnight; weekly batches reset at the start of
// the local ISO week (Monday 00:00).
func (g *QuestGenerator) checkCooldown(ctx context.Context, userID int64, questType string, now time.Time, loc *time.Location) error {
	state, err := g.stateRepo.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load quest state: %w", err)
	}
	if state == nil {
		return nil
	}

	last := state.LastGeneratedAt(questType)
	if last == nil {
		return nil
	}

	localNow := now.In(loc)
	var boundary, next time.Time
	if questType == models.QuestTypeWeekly {
		boundary = timeutil.StartOfISOWeek(localNow)
		next = boundary.AddDate(0, 0, 7)
	} else {
		boundary = timeutil.StartOfDay(localNow)
		next = boundary.AddDate(0, 0, 1)
	}

	if last.In(loc).Before(boundary) {
		return nil
	}

	return &CooldownError{QuestType: questType, NextAllowedAt: next}
}

// validateBatch normalizes the untrusted model output. A quest is dropped
// whole when any of its criteria is malformed, because a half-valid quest
// would persist broken references. The rejects are collected as
// human-readable problems; survivors get temp ids for the batch insert.
func (g *QuestGenerator) validateBatch(
	batch *llm.QuestBatch,
	habits []*models.Habit,
	userID int64,
	questType string,
	now time.Time,
	prompt, raw string,
) ([]*models.Quest, []string) {
	var quests []*models.Quest
	var problems []string

	for i, proposed := range batch.Quests {
		quest, err := g.buildQuest(proposed, habits)
		if err != nil {
			problems = append(problems, fmt.Sprintf("quest %d: %v", i+1, err))
			continue
		}

		quest.UserID = userID
		quest.Type = questType
		quest.Status = models.QuestStatusAvailable
		quest.Source = models.QuestSourceLLM
		quest.GeneratedAt = now
		quest.PromptSummary = summarize(prompt)
		quest.RawResponse = raw
		quest.TempID = uuid.NewString()
		for _, c := range quest.Criteria {
			c.TempQuestRef = quest.TempID
		}

		quests = append(quests, quest)
	}

	return quests, problems
}

func (g *QuestGenerator) buildQuest(proposed llm.ProposedQuest, habits []*models.Habit) (*models.Quest, error) {
	description := strings.TrimSpace(proposed.Description)
	if description == "" {
		return nil, fmt.Errorf("missing description")
	}
	if proposed.XPReward <= 0 {
		return nil, fmt.Errorf("xp_reward must be positive, got %d", proposed.XPReward)
	}
	xp := proposed.XPReward
	if xp > maxXPReward {
		xp = maxXPReward
	}
	if len(proposed.Criteria) == 0 {
		return nil, fmt.Errorf("quest has no criteria")
	}
	if len(proposed.Criteria) > maxCriteriaPerQuest {
		return nil, fmt.Errorf("quest has %d criteria (max %d)", len(proposed.Criteria), maxCriteriaPerQuest)
	}

	quest := &models.Quest{
		Description: description,
		XPReward:    xp,
	}

	for _, pc := range proposed.Criteria {
		criterion, err := g.buildCriterion(pc, habits)
		if err != nil {
			return nil, err
		}
		quest.Criteria = append(quest.Criteria, criterion)
	}

	return quest, nil
}

func (g *QuestGenerator) buildCriterion(proposed llm.ProposedCriterion, habits []*models.Habit) (*models.QuestCriterion, error) {
	if !models.ValidCriterionType(proposed.Type) {
		return nil, fmt.Errorf("unknown criterion type %q", proposed.Type)
	}

	config, ok := proposed.ConfigMap()
	if !ok {
		return nil, fmt.Errorf("criterion %q config is not an object", proposed.Type)
	}

	target := 1
	if models.CriterionRequiresTarget(proposed.Type) {
		raw, exists := config["target_count"]
		if !exists {
			return nil, fmt.Errorf("criterion %q missing target_count", proposed.Type)
		}
		n, ok := raw.(float64)
		if !ok || n < 1 || n != float64(int(n)) {
			return nil, fmt.Errorf("criterion %q has invalid target_count %v", proposed.Type, raw)
		}
		target = int(n)
	}

	normalized := map[string]interface{}{}

	if proposed.Type == models.CriterionTypeHabitCheck {
		name, _ := config["habit_name"].(string)
		habit, found := resolveHabit(name, habits)
		if !found {
			return nil, fmt.Errorf("habit_check references unknown habit %q", name)
		}
		// Persist the durable id; the raw name would dangle on rename.
		normalized["habit_id"] = habit.ID
		normalized["habit_name"] = habit.Name
	}

	description := strings.TrimSpace(proposed.Description)
	if description == "" {
		description = proposed.Type
	}

	return &models.QuestCriterion{
		Description: description,
		Type:        proposed.Type,
		Config:      normalized,
		TargetCount: target,
	}, nil
}

// resolveHabit maps a model-quoted habit name onto the user's real habits:
// case-insensitive exact match first, then an unambiguous fuzzy match.
// Zero or multiple fuzzy candidates means no match, so a typo can never
// bind a criterion to the wrong habit.
func resolveHabit(name string, habits []*models.Habit) (*models.Habit, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, false
	}

	for _, h := range habits {
		if strings.EqualFold(h.Name, trimmed) {
			return h, true
		}
	}

	names := make([]string, len(habits))
	for i, h := range habits {
		names[i] = h.Name
	}
	matches := fuzzy.Find(trimmed, names)
	if len(matches) != 1 {
		return nil, false
	}
	return habits[matches[0].Index], true
}

func summarize(prompt string) string {
	const maxLen = 500
	if len(prompt) <= maxLen {
		return prompt
	}
	return prompt[:maxLen]
}
