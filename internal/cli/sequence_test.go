// Package cli provides tests for sequence CLI helpers.
package cli

import (
	"testing"
	"time"

	"github.com/opencode-ai/cadence/internal/sequences"
)

func TestFilterSequences(t *testing.T) {
	items := []*sequences.Sequence{
		{Name: "a", Tags: []string{"timer", "demo"}},
		{Name: "b", Tags: []string{"reminder"}},
		{Name: "c", Tags: []string{"timer"}},
		{Name: "d", Tags: nil},
	}

	tests := []struct {
		name     string
		tags     []string
		expected int
	}{
		{"no filter", nil, 4},
		{"filter timer", []string{"timer"}, 2},
		{"filter reminder", []string{"REMINDER"}, 1},
		{"filter multiple", []string{"timer", "reminder"}, 3},
		{"filter nonexistent", []string{"nonexistent"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := filterSequences(items, tt.tags)
			if len(result) != tt.expected {
				t.Errorf("filterSequences() = %d items, want %d", len(result), tt.expected)
			}
		})
	}
}

func TestFindSequenceByName(t *testing.T) {
	items := []*sequences.Sequence{
		{Name: "coroutine-time"},
		{Name: "reminder"},
	}

	tests := []struct {
		name    string
		search  string
		wantNil bool
	}{
		{"exact match", "coroutine-time", false},
		{"case insensitive", "REMINDER", false},
		{"not found", "nonexistent", true},
		{"partial match fails", "coroutine", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := findSequenceByName(items, tt.search)
			if (result == nil) != tt.wantNil {
				t.Errorf("findSequenceByName(%q) nil = %v, want nil = %v", tt.search, result == nil, tt.wantNil)
			}
		})
	}
}

func TestParseSequenceVars(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
		wantErr bool
	}{
		{"single var", []string{"key=value"}, 1, false},
		{"multiple vars", []string{"k1=v1", "k2=v2"}, 2, false},
		{"comma separated", []string{"k1=v1,k2=v2"}, 2, false},
		{"empty value", []string{"key="}, 1, false},
		{"missing equals", []string{"invalid"}, 0, true},
		{"empty key", []string{"=value"}, 0, true},
		{"empty input", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseSequenceVars(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseSequenceVars() error = %v, wantErr = %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && len(result) != tt.wantLen {
				t.Errorf("parseSequenceVars() = %d vars, want %d", len(result), tt.wantLen)
			}
		})
	}
}

func TestNormalizeSequenceName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple name", "mysequence", false},
		{"with dashes", "my-sequence", false},
		{"with underscores", "my_sequence", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"with slash", "foo/bar", true},
		{"with dots", "foo..bar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeSequenceName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("normalizeSequenceName(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSequenceSourceLabel(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		userDir    string
		projectDir string
		want       string
	}{
		{"builtin", "builtin", "/home/user/.config/cadence/sequences", "/project/.cadence/sequences", "builtin"},
		{"user sequence", "/home/user/.config/cadence/sequences/foo.yaml", "/home/user/.config/cadence/sequences", "", "user"},
		{"project sequence", "/project/.cadence/sequences/bar.yaml", "", "/project/.cadence/sequences", "project"},
		{"other file", "/some/other/path.yaml", "/home/user/.config/cadence/sequences", "/project/.cadence/sequences", "file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sequenceSourceLabel(tt.source, tt.userDir, tt.projectDir)
			if result != tt.want {
				t.Errorf("sequenceSourceLabel() = %q, want %q", result, tt.want)
			}
		})
	}
}

func TestSequenceLength(t *testing.T) {
	seq := &sequences.Sequence{
		Steps: []sequences.SequenceStep{
			{Content: "a"},
			{Content: "b", Delay: "4s"},
			{Content: "c", Delay: "5s"},
		},
	}
	if got := sequenceLength(seq); got != 9*time.Second {
		t.Fatalf("sequenceLength() = %s, want 9s", got)
	}
	if got := formatOffset(sequenceLength(seq)); got != "+9s" {
		t.Fatalf("formatOffset() = %q, want +9s", got)
	}
}
