package models

import "testing"

func TestThinkingEnabled(t *testing.T) {
	tests := []struct {
		model    string
		expected bool
	}{
		{"gemini-2.5-flash-thinking", true},
		{"claude-sonnet-4-5-thinking", true},
		{"gemini-2.5-pro", true},
		{"gemini-3-pro-high", true},
		{"gemini-3-pro-low", true},
		{"gemini-2.0-flash-thinking-exp", true},
		{"gemini-2.5-flash", false},
		{"claude-sonnet-4-5", false},
		{"gemini-2.5-flash-image", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := ThinkingEnabled(tt.model); got != tt.expected {
				t.Errorf("ThinkingEnabled(%q) = %v, expected %v", tt.model, got, tt.expected)
			}
		})
	}
}

func TestFamilyChecks(t *testing.T) {
	if !IsClaudeFamily("claude-sonnet-4-5") || !IsClaudeFamily("Claude-Sonnet-4-5-Thinking") {
		t.Fatal("claude family not detected")
	}
	if IsClaudeFamily("gemini-2.5-pro") {
		t.Fatal("gemini misclassified as claude")
	}
	if !IsImageModel("gemini-2.5-flash-image") {
		t.Fatal("image model not detected")
	}
	if IsImageModel("gemini-2.5-flash") {
		t.Fatal("text model misclassified as image")
	}
	if !IsGemini3Class("gemini-3-pro-high") || IsGemini3Class("gemini-2.5-pro") {
		t.Fatal("gemini-3 class detection wrong")
	}
}

func TestMergePreservesOrderAndDedupes(t *testing.T) {
	merged := Merge([]string{"gemini-2.5-pro", "chat-exp-001", "", "chat-exp-001"})

	base := len(DefaultRegistry())
	if len(merged) != base+1 {
		t.Fatalf("expected %d models, got %d", base+1, len(merged))
	}
	if merged[len(merged)-1].ID != "chat-exp-001" {
		t.Fatalf("discovered model should append last, got %q", merged[len(merged)-1].ID)
	}
	if merged[0].ID != "gemini-3-pro-high" {
		t.Fatalf("registry order not preserved, got %q first", merged[0].ID)
	}
}
