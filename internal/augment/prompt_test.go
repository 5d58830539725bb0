package augment

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	contexts := []string{"first passage", "second passage", "third passage"}
	prompt, used := BuildPrompt("what is fusion?", contexts, 2)
	if used != 2 {
		t.Errorf("expected 2 used, got %d", used)
	}
	if !strings.Contains(prompt, "[1] first passage") || !strings.Contains(prompt, "[2] second passage") {
		t.Errorf("prompt missing numbered passages:\n%s", prompt)
	}
	if strings.Contains(prompt, "third passage") {
		t.Error("passages beyond topN must be excluded")
	}
	if !strings.Contains(prompt, "Question: what is fusion?") {
		t.Error("prompt missing the question")
	}

	// Order is preserved exactly.
	if strings.Index(prompt, "first passage") > strings.Index(prompt, "second passage") {
		t.Error("context order must be preserved")
	}
}

func TestBuildPrompt_TopNClamped(t *testing.T) {
	prompt, used := BuildPrompt("q", []string{"only"}, 10)
	if used != 1 {
		t.Errorf("expected 1 used, got %d", used)
	}
	if !strings.Contains(prompt, "[1] only") {
		t.Error("single passage missing")
	}

	_, used = BuildPrompt("q", nil, 5)
	if used != 0 {
		t.Errorf("expected 0 used, got %d", used)
	}
}
