package service

import (
	"errors"
	"testing"

	"english_edu_backend/internal/model"
	"english_edu_backend/internal/util"
)

func TestCurrentStreak(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		today string
		want  int
	}{
		{name: "no activity", dates: nil, today: "2026-03-10", want: 0},
		{
			name:  "run ending today",
			dates: []string{"2026-03-08", "2026-03-09", "2026-03-10"},
			today: "2026-03-10",
			want:  3,
		},
		{
			name:  "run ending yesterday still counts",
			dates: []string{"2026-03-08", "2026-03-09"},
			today: "2026-03-10",
			want:  2,
		},
		{
			name:  "two day gap breaks the streak",
			dates: []string{"2026-03-06", "2026-03-07"},
			today: "2026-03-10",
			want:  0,
		},
		{
			name:  "gap in the middle only counts the tail",
			dates: []string{"2026-03-01", "2026-03-02", "2026-03-09", "2026-03-10"},
			today: "2026-03-10",
			want:  2,
		},
		{
			name:  "single day today",
			dates: []string{"2026-03-10"},
			today: "2026-03-10",
			want:  1,
		},
		{
			name:  "month boundary",
			dates: []string{"2026-02-27", "2026-02-28", "2026-03-01"},
			today: "2026-03-01",
			want:  3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CurrentStreak(tt.dates, tt.today); got != tt.want {
				t.Errorf("CurrentStreak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLongestStreak(t *testing.T) {
	tests := []struct {
		name  string
		dates []string
		want  int
	}{
		{name: "empty", dates: nil, want: 0},
		{name: "single day", dates: []string{"2026-03-10"}, want: 1},
		{
			name:  "longest run is in the past",
			dates: []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-07", "2026-03-08"},
			want:  3,
		},
		{
			name:  "unbroken run",
			dates: []string{"2026-03-01", "2026-03-02", "2026-03-03", "2026-03-04"},
			want:  4,
		},
		{
			name:  "isolated days",
			dates: []string{"2026-03-01", "2026-03-05", "2026-03-09"},
			want:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LongestStreak(tt.dates); got != tt.want {
				t.Errorf("LongestStreak() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStageFor(t *testing.T) {
	tests := []struct {
		name           string
		current, total int
		want           model.PlantStage
	}{
		{name: "empty group", current: 0, total: 0, want: model.StageSeed},
		{name: "fresh start", current: 0, total: 50, want: model.StageSeed},
		{name: "seed upper bound", current: 10, total: 50, want: model.StageSeed},
		{name: "sprout", current: 11, total: 50, want: model.StageSprout},
		{name: "sprout upper bound", current: 20, total: 50, want: model.StageSprout},
		{name: "sapling", current: 25, total: 50, want: model.StageSapling},
		{name: "tree", current: 35, total: 50, want: model.StageTree},
		{name: "tree upper bound", current: 40, total: 50, want: model.StageTree},
		{name: "fruit tree", current: 41, total: 50, want: model.StageFruitTree},
		{name: "group complete", current: 50, total: 50, want: model.StageFruitTree},
		{name: "starter group midpoint", current: 10, total: 20, want: model.StageSapling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StageFor(tt.current, tt.total); got != tt.want {
				t.Errorf("StageFor(%d, %d) = %s, want %s", tt.current, tt.total, got, tt.want)
			}
		})
	}
}

func TestWiltingState(t *testing.T) {
	tests := []struct {
		name        string
		last, today string
		wantWilting bool
		wantDelta   int
	}{
		{name: "same day", last: "2026-03-10", today: "2026-03-10", wantWilting: false, wantDelta: 0},
		{name: "one missed day grace", last: "2026-03-09", today: "2026-03-10", wantWilting: true, wantDelta: 0},
		{name: "two missed days", last: "2026-03-08", today: "2026-03-10", wantWilting: true, wantDelta: -model.PlantDecayPerDay},
		{name: "week away", last: "2026-03-03", today: "2026-03-10", wantWilting: true, wantDelta: -6 * model.PlantDecayPerDay},
		{name: "clock skew never decays", last: "2026-03-11", today: "2026-03-10", wantWilting: false, wantDelta: 0},
		{name: "no last completion", last: "", today: "2026-03-10", wantWilting: false, wantDelta: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wilting, delta := WiltingState(tt.last, tt.today)
			if wilting != tt.wantWilting || delta != tt.wantDelta {
				t.Errorf("WiltingState(%q, %q) = (%v, %d), want (%v, %d)",
					tt.last, tt.today, wilting, delta, tt.wantWilting, tt.wantDelta)
			}
		})
	}
}

func TestCarePlantOncePerDay(t *testing.T) {
	s := newTestStack(t)
	f := s.seedSchool(t)

	plant, err := s.progression.CarePlant(f.UserID, "2026-03-10")
	if err != nil {
		t.Fatalf("first care: %v", err)
	}
	if plant.HealthPoints != model.PlantMaxHealth || plant.IsWilting {
		t.Errorf("plant after care = %+v", plant)
	}
	if plant.LastCareDate == nil || *plant.LastCareDate != "2026-03-10" {
		t.Errorf("LastCareDate = %v", plant.LastCareDate)
	}

	if _, err := s.progression.CarePlant(f.UserID, "2026-03-10"); !errors.Is(err, util.ErrConflict) {
		t.Errorf("second care error = %v, want conflict", err)
	}

	// Three missed days wilt the plant and cost health, and caring again
	// restores part of it.
	if err := s.db.Model(&model.UserPlant{}).
		Where("user_id = ?", f.UserID).
		Updates(map[string]interface{}{"health_points": 50, "last_care_date": "2026-03-10"}).Error; err != nil {
		t.Fatalf("age plant: %v", err)
	}
	plant, err = s.progression.CarePlant(f.UserID, "2026-03-13")
	if err != nil {
		t.Fatalf("care after gap: %v", err)
	}
	// 50 - 2*5 decay + 20 restore.
	if plant.HealthPoints != 60 {
		t.Errorf("HealthPoints = %d, want 60", plant.HealthPoints)
	}
	if plant.IsWilting {
		t.Error("plant still wilting after care")
	}
}

func TestGatingPredecessor(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{n: 1, want: 0},
		{n: 2, want: 1},
		{n: 10, want: 9},
		{n: 11, want: 9}, // level 10 is a test slot and never blocks
		{n: 21, want: 19},
		{n: 50, want: 49},
	}
	for _, tt := range tests {
		if got := gatingPredecessor(tt.n); got != tt.want {
			t.Errorf("gatingPredecessor(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
