package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/atlas/backend/internal/model/progress"
)

var (
	primary = lipgloss.Color("#4f9dff")
	dim     = lipgloss.Color("#6e7681")

	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primary)
	LabelStyle   = lipgloss.NewStyle().Bold(true)
	DimStyle     = lipgloss.NewStyle().Foreground(dim)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3fb950"))
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f85149"))
	BoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(primary).Padding(0, 1)
)

// printResult writes v as indented JSON or YAML.
func printResult(w io.Writer, v any, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// progressLine renders "Lv 2 · 40/200 XP · streak 3".
func progressLine(p progress.Progression) string {
	return fmt.Sprintf("Lv %d · %d/%d XP · streak %d", p.Level, p.XP, p.Threshold(), p.Streak)
}

// resolveOption maps a 1-based option number to its text. Anything else is
// returned unchanged.
func resolveOption(answer string, options []string) string {
	answer = strings.TrimSpace(answer)
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(options) {
		return answer
	}
	return options[n-1]
}
