package models

import "strings"

// Model describes one exposed model id and its display metadata.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Created     int64  `json:"created"`
	OwnedBy     string `json:"owned_by"`
}

// registryEpoch is the fixed creation timestamp reported for built-in models.
const registryEpoch int64 = 1735689600 // 2025-01-01T00:00:00Z

// DefaultRegistry returns the curated set of models the gateway exposes.
func DefaultRegistry() []Model {
	ids := []struct {
		id, name string
	}{
		{"gemini-3-pro-high", "Gemini 3 Pro (High)"},
		{"gemini-3-pro-low", "Gemini 3 Pro (Low)"},
		{"gemini-2.5-pro", "Gemini 2.5 Pro"},
		{"gemini-2.5-flash", "Gemini 2.5 Flash"},
		{"gemini-2.5-flash-thinking", "Gemini 2.5 Flash Thinking"},
		{"gemini-2.5-flash-image", "Gemini 2.5 Flash Image"},
		{"claude-sonnet-4-5", "Claude Sonnet 4.5"},
		{"claude-sonnet-4-5-thinking", "Claude Sonnet 4.5 Thinking"},
	}
	out := make([]Model, 0, len(ids))
	for _, m := range ids {
		out = append(out, Model{
			ID:          m.id,
			DisplayName: m.name,
			Created:     registryEpoch,
			OwnedBy:     "antigravity",
		})
	}
	return out
}

// ExposedIDs returns the ids from DefaultRegistry in order.
func ExposedIDs() []string {
	reg := DefaultRegistry()
	out := make([]string, 0, len(reg))
	for _, m := range reg {
		out = append(out, m.ID)
	}
	return out
}

// IsKnown reports whether the id is in the built-in registry.
func IsKnown(id string) bool {
	id = strings.TrimSpace(id)
	for _, m := range DefaultRegistry() {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Merge combines the built-in registry with ids discovered upstream,
// preserving registry order and appending unknown discoveries.
func Merge(discovered []string) []Model {
	out := DefaultRegistry()
	seen := make(map[string]struct{}, len(out))
	for _, m := range out {
		seen[m.ID] = struct{}{}
	}
	for _, id := range discovered {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, Model{
			ID:          id,
			DisplayName: id,
			Created:     registryEpoch,
			OwnedBy:     "antigravity",
		})
	}
	return out
}
