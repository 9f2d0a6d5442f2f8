package llm

import (
	"strings"
	"testing"
)

func TestDecodeBatch(t *testing.T) {
	valid := `{"quests": [{"description": "Walk more", "xp_reward": 30, "criteria": [{"description": "Walk 8000 steps", "type": "steps_reach", "config": {"target_count": 8000}}]}]}`

	tests := []struct {
		name       string
		raw        string
		wantQuests int
		wantErr    string
	}{
		{
			name:       "bare JSON",
			raw:        valid,
			wantQuests: 1,
		},
		{
			name:       "fenced JSON",
			raw:        "```json\n" + valid + "\n```",
			wantQuests: 1,
		},
		{
			name:       "fence without language tag",
			raw:        "```\n" + valid + "\n```",
			wantQuests: 1,
		},
		{
			name:       "prose around JSON",
			raw:        "Here are your quests:\n" + valid + "\nEnjoy!",
			wantQuests: 1,
		},
		{
			name:    "no JSON at all",
			raw:     "I cannot create quests right now.",
			wantErr: "no JSON object",
		},
		{
			name:    "broken JSON",
			raw:     `{"quests": [{"description": "Walk`,
			wantErr: "no JSON object",
		},
		{
			name:    "truncated object",
			raw:     `{"quests": [{"description": "Walk"}`,
			wantErr: "not valid JSON",
		},
		{
			name:    "missing quests array",
			raw:     `{"ideas": []}`,
			wantErr: `missing "quests"`,
		},
		{
			name:    "empty quests array",
			raw:     `{"quests": []}`,
			wantErr: "zero quests",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := DecodeBatch(tt.raw)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("DecodeBatch() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeBatch() error = %v", err)
			}
			if len(batch.Quests) != tt.wantQuests {
				t.Errorf("DecodeBatch() quests = %d, want %d", len(batch.Quests), tt.wantQuests)
			}
		})
	}
}

func TestDecodeBatch_FieldMapping(t *testing.T) {
	raw := `{"quests": [{"description": "Focus day", "xp_reward": 55, "criteria": [
		{"description": "Two focus sessions", "type": "pomodoro_session", "config": {"target_count": 2}},
		{"description": "Stay under budget", "type": "finance_under_allowance", "config": {}}
	]}]}`

	batch, err := DecodeBatch(raw)
	if err != nil {
		t.Fatalf("DecodeBatch() error = %v", err)
	}

	quest := batch.Quests[0]
	if quest.Description != "Focus day" || quest.XPReward != 55 {
		t.Errorf("quest = %+v, want description Focus day xp 55", quest)
	}
	if len(quest.Criteria) != 2 {
		t.Fatalf("criteria = %d, want 2", len(quest.Criteria))
	}

	config, ok := quest.Criteria[0].ConfigMap()
	if !ok {
		t.Fatal("ConfigMap() reported invalid config")
	}
	if got := config["target_count"]; got != float64(2) {
		t.Errorf("target_count = %v, want 2", got)
	}
}

func TestProposedCriterion_ConfigMap(t *testing.T) {
	tests := []struct {
		name   string
		config string
		wantOK bool
	}{
		{name: "object", config: `{"target_count": 3}`, wantOK: true},
		{name: "empty object", config: `{}`, wantOK: true},
		{name: "absent", config: ``, wantOK: true},
		{name: "null", config: `null`, wantOK: true},
		{name: "array", config: `[1, 2]`, wantOK: false},
		{name: "scalar", config: `42`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ProposedCriterion{Config: []byte(tt.config)}
			m, ok := c.ConfigMap()
			if ok != tt.wantOK {
				t.Fatalf("ConfigMap() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && m == nil {
				t.Error("ConfigMap() returned nil map on success")
			}
		})
	}
}
