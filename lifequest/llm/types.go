package llm

import "encoding/json"

// QuestBatch is the structured response contract for a generation call.
// Any other shape coming back from the model is a hard validation failure.
type QuestBatch struct {
	Quests []ProposedQuest `json:"quests"`
}

// ProposedQuest is one model-authored quest before validation. Fields are
// untrusted until the generation pipeline normalizes them.
type ProposedQuest struct {
	Description string              `json:"description"`
	XPReward    int                 `json:"xp_reward"`
	Criteria    []ProposedCriterion `json:"criteria"`
}

// ProposedCriterion keeps config as raw JSON: a criterion whose config is
// not an object must only sink its own quest, not the whole batch.
type ProposedCriterion struct {
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Config      json.RawMessage `json:"config"`
}

// ConfigMap decodes the criterion config, reporting false when the config
// is present but not a JSON object.
func (c *ProposedCriterion) ConfigMap() (map[string]interface{}, bool) {
	if len(c.Config) == 0 {
		return map[string]interface{}{}, true
	}
	var m map[string]interface{}
	if err := json.Unmarshal(c.Config, &m); err != nil {
		return nil, false
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, true
}
