package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chaintrack/chaintrack-backend/internal/repos"
	"github.com/chaintrack/chaintrack-backend/internal/repos/testutil"
	"github.com/chaintrack/chaintrack-backend/internal/types"
)

func TestDetectHardFork(t *testing.T) {
	as := &aiService{}

	cases := []struct {
		name             string
		notes            string
		wantFork         bool
		wantBlock        *int64
		wantDate         string
		wantCoordination bool
	}{
		{
			name:             "activation_block_in_prose",
			notes:            "This hard fork activates at block 19000000",
			wantFork:         true,
			wantBlock:        int64Ptr(19000000),
			wantCoordination: true,
		},
		{
			name:             "block_with_separators_and_date",
			notes:            "Mandatory upgrade for all operators. Activation at block #1,234,567 scheduled for 2025-01-15.",
			wantFork:         true,
			wantBlock:        int64Ptr(1234567),
			wantDate:         "2025-01-15",
			wantCoordination: true,
		},
		{
			name:             "network_upgrade_without_block",
			notes:            "This release contains the Prague network upgrade. All node operators must update.",
			wantFork:         true,
			wantCoordination: true,
		},
		{
			name:     "routine_release",
			notes:    "Bug fixes and minor performance improvements.",
			wantFork: false,
		},
		{
			name:             "coordination_without_fork",
			notes:            "All node operators must restart after applying this update.",
			wantFork:         false,
			wantCoordination: true,
		},
		{
			name:     "empty_notes",
			notes:    "",
			wantFork: false,
		},
		{
			name:             "backwards_incompatible",
			notes:            "Warning: this change is backwards-incompatible with v1 nodes.",
			wantFork:         true,
			wantCoordination: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := as.DetectHardFork(tc.notes)
			if got.IsHardFork != tc.wantFork {
				t.Fatalf("IsHardFork=%v, want %v", got.IsHardFork, tc.wantFork)
			}
			if got.CoordinationRequired != tc.wantCoordination {
				t.Fatalf("CoordinationRequired=%v, want %v", got.CoordinationRequired, tc.wantCoordination)
			}
			if tc.wantBlock == nil {
				if got.ActivationBlock != nil {
					t.Fatalf("ActivationBlock=%d, want nil", *got.ActivationBlock)
				}
			} else {
				if got.ActivationBlock == nil {
					t.Fatalf("ActivationBlock=nil, want %d", *tc.wantBlock)
				}
				if *got.ActivationBlock != *tc.wantBlock {
					t.Fatalf("ActivationBlock=%d, want %d", *got.ActivationBlock, *tc.wantBlock)
				}
			}
			if tc.wantDate == "" {
				return
			}
			if got.ActivationDate == nil {
				t.Fatalf("ActivationDate=nil, want %s", tc.wantDate)
			}
			if got.ActivationDate.Format("2006-01-02") != tc.wantDate {
				t.Fatalf("ActivationDate=%s, want %s", got.ActivationDate.Format("2006-01-02"), tc.wantDate)
			}
		})
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestDetectHardForkAlwaysRequiresCoordination(t *testing.T) {
	as := &aiService{}
	// Notes that trip the fork indicator but say nothing about operators.
	got := as.DetectHardFork("Hardfork at epoch 512.")
	if !got.IsHardFork {
		t.Fatalf("expected hard fork detection")
	}
	if !got.CoordinationRequired {
		t.Fatalf("hard forks must always be flagged as requiring coordination")
	}
}

func TestParseAnalysisJSON(t *testing.T) {
	cases := []struct {
		name        string
		raw         string
		wantErr     bool
		wantSummary string
	}{
		{
			name:        "bare_object",
			raw:         `{"summary": "Routine maintenance.", "upgrade_priority": "low", "confidence_score": 0.9}`,
			wantSummary: "Routine maintenance.",
		},
		{
			name:        "markdown_fenced",
			raw:         "```json\n{\"summary\": \"Fenced output.\", \"upgrade_priority\": \"medium\"}\n```",
			wantSummary: "Fenced output.",
		},
		{
			name:        "prose_wrapped",
			raw:         "Here is the analysis you asked for:\n{\"summary\": \"Wrapped in prose.\"}\nLet me know if you need more.",
			wantSummary: "Wrapped in prose.",
		},
		{
			name:    "no_object",
			raw:     "I could not analyze this release.",
			wantErr: true,
		},
		{
			name:    "broken_object",
			raw:     `{"summary": "unterminated`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseAnalysisJSON(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseAnalysisJSON: %v", err)
			}
			if got.Summary != tc.wantSummary {
				t.Fatalf("Summary=%q, want %q", got.Summary, tc.wantSummary)
			}
		})
	}
}

func TestUsesCompletionTokens(t *testing.T) {
	cases := []struct {
		model string
		want  bool
	}{
		{model: "gpt-5", want: true},
		{model: "GPT-5-mini", want: true},
		{model: "o1-preview", want: true},
		{model: "gpt-4o-mini", want: false},
		{model: "claude-3-5-haiku-20241022", want: false},
		{model: "", want: false},
	}
	for _, tc := range cases {
		if got := usesCompletionTokens(tc.model); got != tc.want {
			t.Fatalf("usesCompletionTokens(%q)=%v, want %v", tc.model, got, tc.want)
		}
	}
}

func TestEstimateImportance(t *testing.T) {
	as := &aiService{}

	cases := []struct {
		name       string
		tag        string
		notes      string
		prerelease bool
		want       string
	}{
		{name: "cve_fix", tag: "v1.2.3", notes: "Fixes CVE-2024-1234 in the RPC layer.", want: "high"},
		{name: "mandatory_fork", tag: "v9.0.1", notes: "Mandatory hard fork release.", want: "high"},
		{name: "prerelease", tag: "v2.0.0-rc.1", notes: "Release candidate.", prerelease: true, want: "low"},
		{name: "security_prerelease_still_high", tag: "v2.0.0-rc.2", notes: "Contains a security patch.", prerelease: true, want: "high"},
		{name: "breaking_change", tag: "v3.1.4", notes: "Breaking change to the config format.", want: "medium"},
		{name: "minor_zero_patch", tag: "v1.3.0", notes: "Routine improvements.", want: "medium"},
		{name: "patch_release", tag: "v1.3.1", notes: "Routine fixes.", want: "low"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := as.EstimateImportance(tc.tag, tc.notes, tc.prerelease)
			if got != tc.want {
				t.Fatalf("EstimateImportance(%q)=%q, want %q", tc.tag, got, tc.want)
			}
		})
	}
}

func TestAnalyzeReleaseNotesLocalProvider(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	testutil.Reset(t, db, "ai_config")

	analysis := map[string]any{
		"summary":          "Adds snap sync improvements.",
		"key_changes":      []string{"snap sync", "pruning"},
		"upgrade_priority": "medium",
		"confidence_score": 0.8,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("local provider must not send an Authorization header")
		}
		content, _ := json.Marshal(analysis)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": string(content)}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	aiCfgRepo := repos.NewAIConfigRepo(db, log)
	ctx := context.Background()
	if _, err := aiCfgRepo.Upsert(ctx, nil, &types.AIConfig{
		AIEnabled:              true,
		Provider:               types.AIProviderLocal,
		Model:                  "llama3",
		BaseURL:                server.URL,
		AnalysisTimeoutSeconds: 10,
	}); err != nil {
		t.Fatalf("upsert ai config: %v", err)
	}

	svc := NewAIService(db, log, aiCfgRepo)
	result, err := svc.AnalyzeReleaseNotes(ctx, "geth", "v1.14.0", "Snap sync improvements and state pruning.")
	if err != nil {
		t.Fatalf("AnalyzeReleaseNotes: %v", err)
	}
	if result == nil {
		t.Fatalf("expected analysis result")
	}
	if result.Summary != "Adds snap sync improvements." {
		t.Fatalf("Summary=%q", result.Summary)
	}
	if result.Provider != types.AIProviderLocal {
		t.Fatalf("Provider=%q, want %q", result.Provider, types.AIProviderLocal)
	}
	if len(result.KeyChanges) != 2 {
		t.Fatalf("KeyChanges=%v", result.KeyChanges)
	}
}

func TestAnalyzeReleaseNotesSkipsWhenDisabled(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	testutil.Reset(t, db, "ai_config")

	aiCfgRepo := repos.NewAIConfigRepo(db, log)
	ctx := context.Background()
	if _, err := aiCfgRepo.Upsert(ctx, nil, &types.AIConfig{
		AIEnabled: false,
		Provider:  types.AIProviderOpenAI,
		APIKey:    "sk-test",
	}); err != nil {
		t.Fatalf("upsert ai config: %v", err)
	}

	svc := NewAIService(db, log, aiCfgRepo)
	result, err := svc.AnalyzeReleaseNotes(ctx, "geth", "v1.14.0", "Some notes.")
	if err != nil {
		t.Fatalf("AnalyzeReleaseNotes: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result while disabled, got %+v", result)
	}
}

func TestAnalyzeReleaseNotesSkipsShortNotes(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	testutil.Reset(t, db, "ai_config")

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "should not be reached", http.StatusInternalServerError)
	}))
	defer server.Close()

	aiCfgRepo := repos.NewAIConfigRepo(db, log)
	ctx := context.Background()
	if _, err := aiCfgRepo.Upsert(ctx, nil, &types.AIConfig{
		AIEnabled:              true,
		Provider:               types.AIProviderLocal,
		BaseURL:                server.URL,
		AnalysisTimeoutSeconds: 5,
	}); err != nil {
		t.Fatalf("upsert ai config: %v", err)
	}

	svc := NewAIService(db, log, aiCfgRepo)
	result, err := svc.AnalyzeReleaseNotes(ctx, "geth", "v1.14.0", "  minor  ")
	if err != nil {
		t.Fatalf("AnalyzeReleaseNotes: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result for trivial notes, got %+v", result)
	}
	if calls != 0 {
		t.Fatalf("provider calls=%d, want 0 for trivial notes", calls)
	}
}

func TestAutoAnalysisEnabled(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)

	cases := []struct {
		name string
		cfg  types.AIConfig
		want bool
	}{
		{
			name: "enabled_with_key",
			cfg:  types.AIConfig{AIEnabled: true, AutoAnalyzeEnabled: true, Provider: types.AIProviderOpenAI, APIKey: "sk-test"},
			want: true,
		},
		{
			name: "auto_analyze_off",
			cfg:  types.AIConfig{AIEnabled: true, AutoAnalyzeEnabled: false, Provider: types.AIProviderOpenAI, APIKey: "sk-test"},
			want: false,
		},
		{
			name: "ai_disabled",
			cfg:  types.AIConfig{AIEnabled: false, AutoAnalyzeEnabled: true, Provider: types.AIProviderOpenAI, APIKey: "sk-test"},
			want: false,
		},
		{
			name: "missing_key",
			cfg:  types.AIConfig{AIEnabled: true, AutoAnalyzeEnabled: true, Provider: types.AIProviderOpenAI},
			want: false,
		},
		{
			name: "local_provider_needs_no_key",
			cfg:  types.AIConfig{AIEnabled: true, AutoAnalyzeEnabled: true, Provider: types.AIProviderLocal},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testutil.Reset(t, db, "ai_config")
			aiCfgRepo := repos.NewAIConfigRepo(db, log)
			ctx := context.Background()
			cfg := tc.cfg
			if _, err := aiCfgRepo.Upsert(ctx, nil, &cfg); err != nil {
				t.Fatalf("upsert ai config: %v", err)
			}
			svc := NewAIService(db, log, aiCfgRepo)
			if got := svc.AutoAnalysisEnabled(ctx); got != tc.want {
				t.Fatalf("AutoAnalysisEnabled=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnalyzeReleaseNotesProviderFailureIsNotAnError(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	testutil.Reset(t, db, "ai_config")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	aiCfgRepo := repos.NewAIConfigRepo(db, log)
	ctx := context.Background()
	if _, err := aiCfgRepo.Upsert(ctx, nil, &types.AIConfig{
		AIEnabled:              true,
		Provider:               types.AIProviderLocal,
		BaseURL:                server.URL,
		AnalysisTimeoutSeconds: 5,
	}); err != nil {
		t.Fatalf("upsert ai config: %v", err)
	}

	svc := NewAIService(db, log, aiCfgRepo)
	start := time.Now()
	result, err := svc.AnalyzeReleaseNotes(ctx, "geth", "v1.14.0", "Some notes.")
	if err != nil {
		t.Fatalf("provider failure must not surface as an error, got %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result on provider failure, got %+v", result)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("analysis took %s, should fail fast", elapsed)
	}
}
