package llm

import (
	"fmt"
	"strings"
)

// PromptContext is the bounded user summary a generation prompt is built
// from. The pipeline gathers it once and never mutates it.
type PromptContext struct {
	QuestType  string
	QuestCount int
	UserLevel  int
	HabitNames []string
}

const systemPrompt = `You are a quest designer for a personal-productivity game. ` +
	`You author short real-world quests that reward users for healthy habits, ` +
	`physical activity, focus sessions, spending discipline and finishing tasks. ` +
	`You respond with a single JSON object and nothing else: no markdown, no prose.`

// SystemPrompt returns the fixed system instruction for generation calls.
func SystemPrompt() string {
	return systemPrompt
}

// BuildPrompt deterministically renders the generation instruction. It
// states the desired quest count, enumerates the allowed criterion types
// with their config shapes, and repeats the user's exact habit names so
// habit_check criteria stay grounded in real data.
func BuildPrompt(pctx PromptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create exactly %d %s quests for a level %d user.\n\n",
		pctx.QuestCount, pctx.QuestType, pctx.UserLevel)

	b.WriteString("Each quest needs a short motivating description, an xp_reward between 10 and 100, and 1 to 3 criteria.\n\n")

	b.WriteString("Allowed criterion types and their config shapes:\n")
	b.WriteString(`- "habit_check": config {"habit_name": "<one of the user's habits, copied exactly>", "target_count": <times to check the habit>}` + "\n")
	b.WriteString(`- "steps_reach": config {"target_count": <step goal>}` + "\n")
	b.WriteString(`- "pomodoro_session": config {"target_count": <focus sessions to finish>}` + "\n")
	b.WriteString(`- "todo_complete": config {"target_count": <todos to finish>}` + "\n")
	b.WriteString(`- "finance_under_allowance": config {} (a daily pass/fail check, no target_count)` + "\n\n")

	if len(pctx.HabitNames) > 0 {
		b.WriteString("The user's habits are, exactly as spelled:\n")
		for _, name := range pctx.HabitNames {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("Only use these names in habit_check criteria.\n\n")
	} else {
		b.WriteString("The user has no habits; do not produce any habit_check criteria.\n\n")
	}

	b.WriteString("Respond with one JSON object of this exact shape and nothing else:\n")
	b.WriteString(`{"quests": [{"description": "...", "xp_reward": 25, "criteria": [{"description": "...", "type": "...", "config": {}}]}]}`)

	return b.String()
}
