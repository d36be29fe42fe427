package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddXPCarriesIntoNextLevel(t *testing.T) {
	p := Progression{Level: 1, XP: 90}
	gained := p.AddXP(ExerciseReward)

	assert.Equal(t, 1, gained)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 15, p.XP)
}

func TestAddXPLargeAwardKeepsInvariant(t *testing.T) {
	p := New("s")
	p.AddXP(1000)

	assert.GreaterOrEqual(t, p.XP, 0)
	assert.Less(t, p.XP, p.Threshold())
	// 100 + 200 + 300 + 400 consumes the whole award.
	assert.Equal(t, 5, p.Level)
	assert.Equal(t, 0, p.XP)
}

func TestAddXPIgnoresNonPositive(t *testing.T) {
	p := Progression{Level: 3, XP: 10}
	p.AddXP(0)
	p.AddXP(-50)

	assert.Equal(t, 3, p.Level)
	assert.Equal(t, 10, p.XP)
}

func TestLevelNeverDecreases(t *testing.T) {
	p := New("s")
	prev := p.Level
	for _, n := range []int{10, 95, 3, 250, 0, 40, 999} {
		p.AddXP(n)
		assert.GreaterOrEqual(t, p.Level, prev)
		assert.Less(t, p.XP, p.Threshold())
		prev = p.Level
	}
}

func TestExtractXP(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"Great job! +10 XP", 10, true},
		{"bonus +25xp for you", 25, true},
		{"+5 XP then +10 XP", 5, true},
		{"no points here", 0, false},
		{"10 XP without plus", 0, false},
	}
	for _, tc := range cases {
		got, ok := ExtractXP(tc.text)
		assert.Equal(t, tc.ok, ok, tc.text)
		assert.Equal(t, tc.want, got, tc.text)
	}
}

func TestTouchStreak(t *testing.T) {
	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	p := New("s")

	p.Touch(day)
	assert.Equal(t, 1, p.Streak)

	p.Touch(day.Add(3 * time.Hour))
	assert.Equal(t, 1, p.Streak)

	p.Touch(day.AddDate(0, 0, 1))
	assert.Equal(t, 2, p.Streak)

	p.Touch(day.AddDate(0, 0, 5))
	assert.Equal(t, 1, p.Streak)
}
