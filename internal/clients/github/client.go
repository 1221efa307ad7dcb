package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chaintrack/chaintrack-backend/internal/logger"
)

// Release is the normalized view of a GitHub release or tag used by the
// rest of the backend. For tags, Body carries the commit message and
// Prerelease/Draft are always false.
type Release struct {
	TagName     string
	Name        string
	Body        string
	HTMLURL     string
	PublishedAt *time.Time
	Prerelease  bool
	Draft       bool
	IsTag       bool
}

// Client fetches release and tag listings from the GitHub REST API.
type Client interface {
	ParseRepoURL(rawURL string) (owner string, repo string, err error)
	GetRecentReleases(ctx context.Context, owner, repo string, limit int) ([]Release, error)
	GetRecentTags(ctx context.Context, owner, repo string, limit int) ([]Release, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	token      string
	httpClient *http.Client
}

type Options struct {
	// Personal access token. Empty means unauthenticated requests
	// subject to GitHub's low anonymous rate limit.
	Token string
	// Override for tests and GitHub Enterprise installs.
	BaseURL string
	Timeout time.Duration
}

func NewClient(log *logger.Logger, opts Options) Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &client{
		log:        log.With("service", "GitHubClient"),
		baseURL:    baseURL,
		token:      strings.TrimSpace(opts.Token),
		httpClient: &http.Client{Timeout: timeout},
	}
}

var (
	repoURLPattern    = regexp.MustCompile(`github\.com/([^/]+)/([^/\s]+)`)
	apiRepoURLPattern = regexp.MustCompile(`api\.github\.com/repos/([^/]+)/([^/\s]+)`)
)

func (c *client) ParseRepoURL(rawURL string) (string, string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", "", fmt.Errorf("empty repository url")
	}

	var m []string
	if sub := apiRepoURLPattern.FindStringSubmatch(trimmed); sub != nil {
		m = sub
	} else if sub := repoURLPattern.FindStringSubmatch(trimmed); sub != nil {
		m = sub
	}
	if m == nil {
		return "", "", fmt.Errorf("not a github repository url: %s", trimmed)
	}

	owner := m[1]
	repo := strings.TrimSuffix(strings.TrimRight(m[2], "/"), ".git")
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("not a github repository url: %s", trimmed)
	}
	return owner, repo, nil
}

type githubHTTPError struct {
	StatusCode int
	Body       string
}

func (e *githubHTTPError) Error() string {
	return fmt.Sprintf("github http %d: %s", e.StatusCode, e.Body)
}

func (c *client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &githubHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("github decode error: %w", err)
	}
	return nil
}

type releasePayload struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Body        string     `json:"body"`
	HTMLURL     string     `json:"html_url"`
	PublishedAt *time.Time `json:"published_at"`
	Prerelease  bool       `json:"prerelease"`
	Draft       bool       `json:"draft"`
}

func (c *client) GetRecentReleases(ctx context.Context, owner, repo string, limit int) ([]Release, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(limit))

	var payload []releasePayload
	path := fmt.Sprintf("/repos/%s/%s/releases", owner, repo)
	if err := c.get(ctx, path, query, &payload); err != nil {
		return nil, err
	}

	out := make([]Release, 0, len(payload))
	for _, item := range payload {
		out = append(out, Release{
			TagName:     item.TagName,
			Name:        item.Name,
			Body:        item.Body,
			HTMLURL:     item.HTMLURL,
			PublishedAt: item.PublishedAt,
			Prerelease:  item.Prerelease,
			Draft:       item.Draft,
		})
	}
	return out, nil
}

type tagPayload struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
		URL string `json:"url"`
	} `json:"commit"`
}

type commitPayload struct {
	Commit struct {
		Message   string `json:"message"`
		Committer struct {
			Date *time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
	HTMLURL string `json:"html_url"`
}

// GetRecentTags lists repository tags and enriches each with the commit
// date and message from a follow-up commit fetch. Repos without formal
// releases publish versions this way.
func (c *client) GetRecentTags(ctx context.Context, owner, repo string, limit int) ([]Release, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(limit))

	var payload []tagPayload
	path := fmt.Sprintf("/repos/%s/%s/tags", owner, repo)
	if err := c.get(ctx, path, query, &payload); err != nil {
		return nil, err
	}

	out := make([]Release, 0, len(payload))
	for _, tag := range payload {
		rel := Release{
			TagName: tag.Name,
			Name:    tag.Name,
			HTMLURL: fmt.Sprintf("https://github.com/%s/%s/releases/tag/%s", owner, repo, tag.Name),
			IsTag:   true,
		}

		if tag.Commit.SHA != "" {
			commitPath := fmt.Sprintf("/repos/%s/%s/commits/%s", owner, repo, tag.Commit.SHA)
			var commit commitPayload
			if err := c.get(ctx, commitPath, nil, &commit); err != nil {
				c.log.Warn("Failed to fetch commit for tag",
					"owner", owner,
					"repo", repo,
					"tag", tag.Name,
					"error", err.Error(),
				)
			} else {
				rel.Body = commit.Commit.Message
				rel.PublishedAt = commit.Commit.Committer.Date
			}
		}

		out = append(out, rel)
	}
	return out, nil
}
