package util

import (
	"strings"
	"testing"
)

func TestGenerateNChar(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		wantErr bool
	}{
		{"Generate 5 characters", 5, false},
		{"Generate 43 characters", 43, false},
		{"Generate negative characters", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateNChar(tt.n)
			if (err != nil) != tt.wantErr {
				t.Errorf("GenerateNChar() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if !IsNChar(got, tt.n) {
				t.Errorf("GenerateNChar() got = %q, want %d url-safe characters", got, tt.n)
			}
		})
	}
}

func TestIsNChar(t *testing.T) {
	tests := []struct {
		name string
		s    string
		n    int
		want bool
	}{
		{"url-safe", "aZ0_-", 5, true},
		{"wrong length", "aZ0_", 5, false},
		{"slash", "aZ0/-", 5, false},
		{"percent escape", "a%20b", 5, false},
		{"dot", strings.Repeat(".", 3), 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNChar(tt.s, tt.n); got != tt.want {
				t.Errorf("IsNChar(%q, %d) = %v, want %v", tt.s, tt.n, got, tt.want)
			}
		})
	}
}
