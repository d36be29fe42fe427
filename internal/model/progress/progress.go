// Package progress models the learner's gamified progression.
package progress

import (
	"regexp"
	"strconv"
	"time"
)

// ExerciseReward is the XP granted for a correctly answered exercise.
const ExerciseReward = 25

const levelStep = 100

var xpPattern = regexp.MustCompile(`(?i)\+(\d+)\s*XP`)

// Progression is the persisted level/XP/streak record of a session.
type Progression struct {
	SessionID     string    `json:"sessionId" msgpack:"sessionId"`
	Level         int       `json:"level" msgpack:"level"`
	XP            int       `json:"xp" msgpack:"xp"`
	Streak        int       `json:"streak" msgpack:"streak"`
	LastActiveDay string    `json:"lastActiveDay,omitempty" msgpack:"lastActiveDay"`
	UpdatedAt     time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// New returns the starting record: level 1, no XP, no streak.
func New(sessionID string) Progression {
	return Progression{SessionID: sessionID, Level: 1}
}

// Threshold is the XP needed to leave the current level.
func (p Progression) Threshold() int {
	return p.Level * levelStep
}

// AddXP adds n and carries into levels until XP is below the threshold.
// Non-positive amounts are ignored. It returns the number of levels gained.
func (p *Progression) AddXP(n int) int {
	if n <= 0 {
		return 0
	}
	if p.Level < 1 {
		p.Level = 1
	}
	p.XP += n
	gained := 0
	for p.XP >= p.Threshold() {
		p.XP -= p.Threshold()
		p.Level++
		gained++
	}
	return gained
}

// Touch records activity on now's calendar day and maintains the daily streak.
func (p *Progression) Touch(now time.Time) {
	today := now.UTC().Format(time.DateOnly)
	switch {
	case p.LastActiveDay == today:
		return
	case p.LastActiveDay == now.UTC().AddDate(0, 0, -1).Format(time.DateOnly):
		p.Streak++
	default:
		p.Streak = 1
	}
	p.LastActiveDay = today
}

// ExtractXP finds the first "+N XP" award in a tutor reply.
func ExtractXP(text string) (int, bool) {
	match := xpPattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
