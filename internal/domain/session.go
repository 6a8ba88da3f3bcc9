package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// WorkSession is one timed evaluation of a candidate against a source repository.
type WorkSession struct {
	ID          SessionID
	CandidateID CandidateID

	GitHubURL       string
	RoleTrack       RoleTrack
	Level           Level
	DurationMinutes int

	Status    SessionStatus
	StartedAt Timestamp
	EndedAt   *Timestamp

	// Repository is nil when the repository could not be inspected.
	Repository *RepositoryInfo
}

// RepositoryInfo is a snapshot of the repository a session is based on.
type RepositoryInfo struct {
	Owner         string   `json:"owner"`
	Name          string   `json:"name"`
	FullName      string   `json:"fullName"`
	Description   string   `json:"description,omitempty"`
	DefaultBranch string   `json:"defaultBranch,omitempty"`
	Language      string   `json:"language,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	Stars         int      `json:"stars"`
}

func (s *WorkSession) HasGitHubData() bool {
	return s.Repository != nil
}

// Clone returns a deep copy so stores can hand out values callers may mutate.
func (s *WorkSession) Clone() *WorkSession {
	if s == nil {
		return nil
	}
	out := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	if s.Repository != nil {
		repo := *s.Repository
		repo.Topics = append([]string(nil), s.Repository.Topics...)
		out.Repository = &repo
	}
	return &out
}

// ParseGitHubURL extracts owner and repository name from an https GitHub URL
// such as https://github.com/owner/repo or https://github.com/owner/repo/tree/main.
func ParseGitHubURL(raw string) (owner, repo string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", requiredFieldError(ErrValidation, "githubUrl")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: githubUrl %q: %v", ErrValidation, raw, err)
	}
	if u.Scheme != "https" {
		return "", "", fmt.Errorf("%w: githubUrl must use https", ErrValidation)
	}
	host := strings.ToLower(u.Hostname())
	if host != "github.com" && host != "www.github.com" {
		return "", "", fmt.Errorf("%w: githubUrl must point to github.com", ErrValidation)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 1 && parts[0] != "" {
		// Owner-only URLs are accepted; there is no repository to inspect.
		return parts[0], "", nil
	}
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: githubUrl must include an owner", ErrValidation)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}
