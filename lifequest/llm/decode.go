package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeBatch parses raw model output into a QuestBatch. Models often wrap
// JSON in markdown fences or lead with prose, so the decoder trims to the
// outermost object before unmarshalling.
func DecodeBatch(raw string) (*QuestBatch, error) {
	trimmed := extractJSON(raw)
	if trimmed == "" {
		return nil, errors.New("response contains no JSON object")
	}

	var batch QuestBatch
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&batch); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}

	if batch.Quests == nil {
		return nil, errors.New(`response missing "quests" array`)
	}
	if len(batch.Quests) == 0 {
		return nil, errors.New("response proposed zero quests")
	}

	return &batch, nil
}

func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
