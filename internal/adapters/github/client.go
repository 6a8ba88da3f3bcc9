// Package github reads repository metadata from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PabloGalante/worksession/internal/domain"
)

const DefaultBaseURL = "https://api.github.com"

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ domain.RepositoryInspector = (*Client)(nil)

// NewClient creates a GitHub client. token may be empty for anonymous
// (rate limited) access.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type repoResponse struct {
	Name          string   `json:"name"`
	FullName      string   `json:"full_name"`
	Description   string   `json:"description"`
	DefaultBranch string   `json:"default_branch"`
	Language      string   `json:"language"`
	Topics        []string `json:"topics"`
	Stars         int      `json:"stargazers_count"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
}

// Inspect implements domain.RepositoryInspector.
func (c *Client) Inspect(ctx context.Context, owner, repo string) (*domain.RepositoryInfo, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("github: owner and repo are required")
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("github: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github: get %s/%s: %w", owner, repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github: get %s/%s: status %d: %s", owner, repo, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out repoResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("github: decode %s/%s: %w", owner, repo, err)
	}

	return &domain.RepositoryInfo{
		Owner:         out.Owner.Login,
		Name:          out.Name,
		FullName:      out.FullName,
		Description:   out.Description,
		DefaultBranch: out.DefaultBranch,
		Language:      out.Language,
		Topics:        out.Topics,
		Stars:         out.Stars,
	}, nil
}
