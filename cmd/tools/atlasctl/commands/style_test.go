package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/atlas/backend/internal/model/progress"
)

func TestResolveOption(t *testing.T) {
	options := []string{"go", "went", "gone"}

	assert.Equal(t, "went", resolveOption(" 2 ", options))
	assert.Equal(t, "4", resolveOption("4", options))
	assert.Equal(t, "gone", resolveOption("gone", options))
	assert.Equal(t, "1", resolveOption("1", nil))
}

func TestPrintResult(t *testing.T) {
	p := progress.New("s1")

	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, p, true))
	assert.Contains(t, buf.String(), `"sessionId": "s1"`)

	buf.Reset()
	require.NoError(t, printResult(&buf, map[string]int{"level": 1}, false))
	assert.Equal(t, "level: 1\n", buf.String())
}

func TestProgressLine(t *testing.T) {
	p := progress.Progression{Level: 2, XP: 40, Streak: 3}
	assert.Equal(t, "Lv 2 · 40/200 XP · streak 3", progressLine(p))
}
