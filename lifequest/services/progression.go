package services

import (
	"context"
	"fmt"

	"github.com/lifequest-app/lifequest/lifequest/database/repositories"
)

// ProgressionConfig holds the cumulative XP thresholds per level. Index i
// is the total XP needed to sit at level i+1.
type ProgressionConfig struct {
	LevelThresholds []int64
}

func NewDefaultProgressionConfig() *ProgressionConfig {
	return &ProgressionConfig{
		LevelThresholds: []int64{
			0,     // level 1
			100,   // level 2
			300,   // level 3
			700,   // level 4
			1500,  // level 5
			3000,  // level 6
			5500,  // level 7
			9000,  // level 8
			14000, // level 9
			21000, // level 10
		},
	}
}

// LevelForXP returns the level a cumulative XP total corresponds to.
func (c *ProgressionConfig) LevelForXP(xp int64) int {
	level := 1
	for i, threshold := range c.LevelThresholds {
		if xp >= threshold {
			level = i + 1
		}
	}
	return level
}

type XPResult struct {
	NewTotal  int64
	NewLevel  int
	LeveledUp bool
}

// ProgressionService owns experience accounting. Quest claims are the only
// in-core caller; other activity subsystems award XP through their own path.
type ProgressionService struct {
	config   *ProgressionConfig
	userRepo repositories.UserRepository
}

func NewProgressionService(config *ProgressionConfig, userRepo repositories.UserRepository) *ProgressionService {
	return &ProgressionService{
		config:   config,
		userRepo: userRepo,
	}
}

// AwardXP grants experience and promotes the user when a threshold is
// crossed. The XP add is a single atomic increment.
func (s *ProgressionService) AwardXP(ctx context.Context, userID int64, amount int) (*XPResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("xp amount must be positive, got %d", amount)
	}

	user, err := s.userRepo.AddXP(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to award xp: %w", err)
	}

	result := &XPResult{
		NewTotal: user.XP,
		NewLevel: user.Level,
	}

	newLevel := s.config.LevelForXP(user.XP)
	if newLevel > user.Level {
		if err := s.userRepo.UpdateLevel(ctx, userID, newLevel); err != nil {
			return nil, fmt.Errorf("failed to update level: %w", err)
		}
		result.NewLevel = newLevel
		result.LeveledUp = true
	}

	return result, nil
}
