package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chaintrack/chaintrack-backend/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestParseRepoURL(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		owner   string
		repo    string
		wantErr bool
	}{
		{name: "https", url: "https://github.com/ethereum/go-ethereum", owner: "ethereum", repo: "go-ethereum"},
		{name: "trailing_slash", url: "https://github.com/ethereum/go-ethereum/", owner: "ethereum", repo: "go-ethereum"},
		{name: "dot_git_suffix", url: "https://github.com/sigp/lighthouse.git", owner: "sigp", repo: "lighthouse"},
		{name: "no_scheme", url: "github.com/paradigmxyz/reth", owner: "paradigmxyz", repo: "reth"},
		{name: "api_url", url: "https://api.github.com/repos/ethereum/go-ethereum", owner: "ethereum", repo: "go-ethereum"},
		{name: "deep_link", url: "https://github.com/ethereum/go-ethereum/releases", owner: "ethereum", repo: "go-ethereum"},
		{name: "not_github", url: "https://gitlab.com/foo/bar", wantErr: true},
		{name: "empty", url: "", wantErr: true},
		{name: "whitespace", url: "   ", wantErr: true},
	}

	c := NewClient(testLogger(t), Options{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			owner, repo, err := c.ParseRepoURL(tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s/%s", owner, repo)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRepoURL(%q): %v", tc.url, err)
			}
			if owner != tc.owner || repo != tc.repo {
				t.Fatalf("ParseRepoURL(%q)=(%s,%s), want (%s,%s)", tc.url, owner, repo, tc.owner, tc.repo)
			}
		})
	}
}

func TestGetRecentReleases(t *testing.T) {
	published := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	var gotAuth, gotPerPage string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/ethereum/go-ethereum/releases" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotPerPage = r.URL.Query().Get("per_page")
		payload := []map[string]any{
			{
				"tag_name":     "v1.14.0",
				"name":         "Asteria",
				"body":         "Release notes.",
				"html_url":     "https://github.com/ethereum/go-ethereum/releases/tag/v1.14.0",
				"published_at": published.Format(time.RFC3339),
				"prerelease":   false,
				"draft":        false,
			},
			{
				"tag_name":   "v1.14.1-rc.1",
				"prerelease": true,
				"draft":      true,
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	c := NewClient(testLogger(t), Options{Token: "ghp_test", BaseURL: server.URL})
	releases, err := c.GetRecentReleases(context.Background(), "ethereum", "go-ethereum", 5)
	if err != nil {
		t.Fatalf("GetRecentReleases: %v", err)
	}
	if gotAuth != "Bearer ghp_test" {
		t.Fatalf("Authorization=%q", gotAuth)
	}
	if gotPerPage != "5" {
		t.Fatalf("per_page=%q, want 5", gotPerPage)
	}
	if len(releases) != 2 {
		t.Fatalf("releases=%d, want 2", len(releases))
	}
	if releases[0].TagName != "v1.14.0" || releases[0].Name != "Asteria" {
		t.Fatalf("first release=%+v", releases[0])
	}
	if releases[0].PublishedAt == nil || !releases[0].PublishedAt.Equal(published) {
		t.Fatalf("PublishedAt=%v, want %s", releases[0].PublishedAt, published)
	}
	if !releases[1].Draft || !releases[1].Prerelease {
		t.Fatalf("draft flags lost: %+v", releases[1])
	}
	if releases[0].IsTag {
		t.Fatalf("releases must not be marked as tags")
	}
}

func TestGetRecentReleasesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message": "API rate limit exceeded"}`, http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient(testLogger(t), Options{BaseURL: server.URL})
	if _, err := c.GetRecentReleases(context.Background(), "ethereum", "go-ethereum", 5); err == nil {
		t.Fatalf("expected error on 403 response")
	}
}

func TestGetRecentTags(t *testing.T) {
	commitDate := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/osmosis-labs/osmosis/tags":
			payload := []map[string]any{
				{"name": "v25.0.0", "commit": map[string]any{"sha": "abc123"}},
				{"name": "v24.0.5", "commit": map[string]any{"sha": "missing"}},
			}
			_ = json.NewEncoder(w).Encode(payload)
		case "/repos/osmosis-labs/osmosis/commits/abc123":
			payload := map[string]any{
				"commit": map[string]any{
					"message":   "Release v25.0.0",
					"committer": map[string]any{"date": commitDate.Format(time.RFC3339)},
				},
			}
			_ = json.NewEncoder(w).Encode(payload)
		case "/repos/osmosis-labs/osmosis/commits/missing":
			http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewClient(testLogger(t), Options{BaseURL: server.URL})
	tags, err := c.GetRecentTags(context.Background(), "osmosis-labs", "osmosis", 10)
	if err != nil {
		t.Fatalf("GetRecentTags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("tags=%d, want 2", len(tags))
	}

	first := tags[0]
	if !first.IsTag {
		t.Fatalf("tag not marked as tag: %+v", first)
	}
	if first.Body != "Release v25.0.0" {
		t.Fatalf("Body=%q, want commit message", first.Body)
	}
	if first.PublishedAt == nil || !first.PublishedAt.Equal(commitDate) {
		t.Fatalf("PublishedAt=%v, want committer date", first.PublishedAt)
	}
	if first.HTMLURL != "https://github.com/osmosis-labs/osmosis/releases/tag/v25.0.0" {
		t.Fatalf("HTMLURL=%q", first.HTMLURL)
	}

	// A failed commit lookup degrades to a bare tag instead of failing
	// the whole listing.
	second := tags[1]
	if second.TagName != "v24.0.5" {
		t.Fatalf("second tag=%+v", second)
	}
	if second.PublishedAt != nil || second.Body != "" {
		t.Fatalf("bare tag should have no commit data: %+v", second)
	}
}

func TestLimitClamping(t *testing.T) {
	var perPages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		perPages = append(perPages, r.URL.Query().Get("per_page"))
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer server.Close()

	c := NewClient(testLogger(t), Options{BaseURL: server.URL})
	ctx := context.Background()
	if _, err := c.GetRecentReleases(ctx, "o", "r", 0); err != nil {
		t.Fatalf("limit 0: %v", err)
	}
	if _, err := c.GetRecentReleases(ctx, "o", "r", 500); err != nil {
		t.Fatalf("limit 500: %v", err)
	}
	if len(perPages) != 2 || perPages[0] != "10" || perPages[1] != "100" {
		t.Fatalf("per_page values=%v, want [10 100]", perPages)
	}
}
