package tutor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store exposes tutor retrieval for HTTP handlers and services.
type Store interface {
	List() []Tutor
	FindByID(id string) (Tutor, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Tutor
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied tutors.
func NewMemoryStore(items []Tutor) *MemoryStore {
	return &MemoryStore{items: append([]Tutor(nil), items...)}
}

// List returns the configured tutors.
func (s *MemoryStore) List() []Tutor {
	return append([]Tutor(nil), s.items...)
}

// FindByID looks up a tutor by identifier.
func (s *MemoryStore) FindByID(id string) (Tutor, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Tutor{}, false
}

type profileFile struct {
	Tutors []Tutor `yaml:"tutors"`
}

// LoadFile reads tutor profiles from a YAML file and merges them over base.
// Profiles with an existing ID replace it; empty fields inherit from the
// replaced profile.
func LoadFile(path string, base []Tutor) ([]Tutor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tutor profiles: %w", err)
	}
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tutor profiles %s: %w", path, err)
	}

	merged := append([]Tutor(nil), base...)
	for _, t := range file.Tutors {
		if t.ID == "" {
			return nil, fmt.Errorf("tutor profile without id in %s", path)
		}
		replaced := false
		for i := range merged {
			if merged[i].ID == t.ID {
				merged[i] = inherit(t, merged[i])
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, t)
		}
	}
	return merged, nil
}

func inherit(t, from Tutor) Tutor {
	pick := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	t.Name = pick(t.Name, from.Name)
	t.Title = pick(t.Title, from.Title)
	t.Language = pick(t.Language, from.Language)
	t.SupportLanguage = pick(t.SupportLanguage, from.SupportLanguage)
	t.Greeting = pick(t.Greeting, from.Greeting)
	t.VoiceName = pick(t.VoiceName, from.VoiceName)
	t.SystemInstruction = pick(t.SystemInstruction, from.SystemInstruction)
	t.CallInstruction = pick(t.CallInstruction, from.CallInstruction)
	t.ExercisePrompt = pick(t.ExercisePrompt, from.ExercisePrompt)
	return t
}
