package services

import (
	"context"
	"testing"

	"github.com/lifequest-app/lifequest/lifequest/database/models"
)

func TestProgressionConfig_LevelForXP(t *testing.T) {
	config := NewDefaultProgressionConfig()

	tests := []struct {
		xp   int64
		want int
	}{
		{xp: 0, want: 1},
		{xp: 99, want: 1},
		{xp: 100, want: 2},
		{xp: 299, want: 2},
		{xp: 300, want: 3},
		{xp: 21000, want: 10},
		{xp: 1_000_000, want: 10},
	}

	for _, tt := range tests {
		if got := config.LevelForXP(tt.xp); got != tt.want {
			t.Errorf("LevelForXP(%d) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}

func TestProgressionService_AwardXP(t *testing.T) {
	tests := []struct {
		name          string
		startXP       int64
		startLevel    int
		amount        int
		wantTotal     int64
		wantLevel     int
		wantLeveledUp bool
		wantErr       bool
	}{
		{
			name:       "grant below threshold",
			startXP:    10,
			startLevel: 1,
			amount:     40,
			wantTotal:  50,
			wantLevel:  1,
		},
		{
			name:          "grant crosses threshold",
			startXP:       90,
			startLevel:    1,
			amount:        20,
			wantTotal:     110,
			wantLevel:     2,
			wantLeveledUp: true,
		},
		{
			name:          "grant crosses several thresholds",
			startXP:       0,
			startLevel:    1,
			amount:        800,
			wantTotal:     800,
			wantLevel:     4,
			wantLeveledUp: true,
		},
		{
			name:       "zero amount rejected",
			startXP:    0,
			startLevel: 1,
			amount:     0,
			wantErr:    true,
		},
		{
			name:       "negative amount rejected",
			startXP:    0,
			startLevel: 1,
			amount:     -5,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newFakeUserRepo(&models.User{ID: 1, XP: tt.startXP, Level: tt.startLevel})
			s := NewProgressionService(NewDefaultProgressionConfig(), users)

			result, err := s.AwardXP(context.Background(), 1, tt.amount)
			if (err != nil) != tt.wantErr {
				t.Fatalf("AwardXP() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if result.NewTotal != tt.wantTotal {
				t.Errorf("AwardXP() total = %d, want %d", result.NewTotal, tt.wantTotal)
			}
			if result.NewLevel != tt.wantLevel {
				t.Errorf("AwardXP() level = %d, want %d", result.NewLevel, tt.wantLevel)
			}
			if result.LeveledUp != tt.wantLeveledUp {
				t.Errorf("AwardXP() leveledUp = %v, want %v", result.LeveledUp, tt.wantLeveledUp)
			}
			if users.users[1].Level != tt.wantLevel {
				t.Errorf("persisted level = %d, want %d", users.users[1].Level, tt.wantLevel)
			}
		})
	}
}
