package domain_test

import (
	"testing"

	"github.com/PabloGalante/worksession/internal/domain"
)

func TestParseGitHubURL(t *testing.T) {
	tests := []struct {
		raw       string
		owner     string
		repo      string
		wantError bool
	}{
		{raw: "https://github.com/x", owner: "x"},
		{raw: "https://github.com/golang/go", owner: "golang", repo: "go"},
		{raw: "https://github.com/golang/go.git", owner: "golang", repo: "go"},
		{raw: "https://www.github.com/golang/go/tree/master/src", owner: "golang", repo: "go"},
		{raw: "http://github.com/golang/go", wantError: true},
		{raw: "https://gitlab.com/golang/go", wantError: true},
		{raw: "https://github.com/", wantError: true},
		{raw: "", wantError: true},
	}

	for _, tt := range tests {
		owner, repo, err := domain.ParseGitHubURL(tt.raw)
		if tt.wantError {
			if !domain.IsValidation(err) {
				t.Fatalf("%q: expected validation error, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.raw, err)
		}
		if owner != tt.owner || repo != tt.repo {
			t.Fatalf("%q: expected %s/%s, got %s/%s", tt.raw, tt.owner, tt.repo, owner, repo)
		}
	}
}

func TestValidateDuration(t *testing.T) {
	if err := domain.ValidateDuration(15); err != nil {
		t.Fatalf("15 minutes should be allowed: %v", err)
	}
	if err := domain.ValidateDuration(20); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for 20 minutes, got %v", err)
	}
}

func TestStatusTerminal(t *testing.T) {
	if domain.StatusActive.Terminal() {
		t.Fatalf("active must not be terminal")
	}
	if !domain.StatusCompleted.Terminal() || !domain.StatusAbandoned.Terminal() {
		t.Fatalf("completed and abandoned must be terminal")
	}
}
