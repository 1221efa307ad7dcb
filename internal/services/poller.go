package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "strings"
  "sync"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/chaintrack/chaintrack-backend/internal/clients/github"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

// ControlResult is the outcome of a start/stop/poll-now command.
type ControlResult struct {
  Status  string `json:"status"`
  Message string `json:"message"`
}

const (
  ControlStarted        = "started"
  ControlAlreadyRunning = "already_running"
  ControlStopped        = "stopped"
  ControlAlreadyStopped = "already_stopped"
  ControlError          = "error"
)

// PollSummary reports one reconciliation cycle.
type PollSummary struct {
  ClientsPolled int      `json:"clients_polled"`
  NewReleases   int      `json:"new_releases"`
  Analyzed      int      `json:"analyzed"`
  Errors        []string `json:"errors,omitempty"`
  StartedAt     time.Time `json:"started_at"`
  DurationMS    int64    `json:"duration_ms"`
}

// PollerStatus is the live view of the poller returned to admins. The
// running flag reflects this process; poller_enabled is the persisted
// intent and the two can disagree across restarts.
type PollerStatus struct {
  IsRunning              bool       `json:"is_running"`
  TaskAlive              bool       `json:"task_alive"`
  PollerEnabled          bool       `json:"poller_enabled"`
  PollingIntervalMinutes int        `json:"polling_interval_minutes"`
  LastPollTime           *time.Time `json:"last_poll_time,omitempty"`
  TrackedClients         int        `json:"tracked_clients"`
}

type PollerService interface {
  Start(ctx context.Context) ControlResult
  Stop(ctx context.Context) ControlResult
  Status(ctx context.Context) (*PollerStatus, error)
  PollNow(ctx context.Context) (*PollSummary, error)
}

// GitHubClientFactory builds an API client for the token currently in
// config. The loop rebuilds the client each cycle so token rotation
// takes effect without a restart.
type GitHubClientFactory func(token string) github.Client

// At most this many new releases get AI analysis in one cycle. A newly
// tracked client can surface its whole history at once and burning the
// provider budget on old releases helps nobody.
const maxAnalysesPerCycle = 10

// Manual polls skip inline analysis of very large notes so the HTTP
// request returns promptly.
const manualAnalysisNotesLimit = 5000

const releasesPerClient = 10

const errorBackoff = 60 * time.Second

// ErrGitHubKeyNotConfigured is returned by poll commands issued before
// an API key has been saved.
var ErrGitHubKeyNotConfigured = errors.New("GitHub API key not configured")

type pollerService struct {
  db        *gorm.DB
  log       *logger.Logger
  clients   repos.ClientRepo
  updates   repos.ProtocolUpdateRepo
  ghCfg     repos.GitHubConfigRepo
  ai        AIService
  notifier  NotificationService
  ghFactory GitHubClientFactory

  mu      sync.Mutex
  running bool
  cancel  context.CancelFunc
  done    chan struct{}
}

func NewPollerService(
  db *gorm.DB,
  baseLog *logger.Logger,
  clientRepo repos.ClientRepo,
  updateRepo repos.ProtocolUpdateRepo,
  ghCfgRepo repos.GitHubConfigRepo,
  aiService AIService,
  notifService NotificationService,
  ghFactory GitHubClientFactory,
) PollerService {
  return &pollerService{
    db:        db,
    log:       baseLog.With("service", "PollerService"),
    clients:   clientRepo,
    updates:   updateRepo,
    ghCfg:     ghCfgRepo,
    ai:        aiService,
    notifier:  notifService,
    ghFactory: ghFactory,
  }
}

func (ps *pollerService) Start(ctx context.Context) ControlResult {
  ps.mu.Lock()
  defer ps.mu.Unlock()

  if ps.running {
    return ControlResult{Status: ControlAlreadyRunning, Message: "poller is already running"}
  }

  cfg, err := ps.ghCfg.Get(ctx, nil)
  if err != nil {
    return ControlResult{Status: ControlError, Message: fmt.Sprintf("load github config: %v", err)}
  }
  if cfg == nil || strings.TrimSpace(cfg.APIKey) == "" {
    return ControlResult{Status: ControlError, Message: ErrGitHubKeyNotConfigured.Error()}
  }

  if err := ps.ghCfg.SetPollerEnabled(ctx, nil, true); err != nil {
    return ControlResult{Status: ControlError, Message: fmt.Sprintf("persist poller flag: %v", err)}
  }

  loopCtx, cancel := context.WithCancel(context.Background())
  ps.cancel = cancel
  ps.done = make(chan struct{})
  ps.running = true

  go ps.runLoop(loopCtx, ps.done)

  ps.log.Info("Background poller started")
  return ControlResult{Status: ControlStarted, Message: "background poller started"}
}

func (ps *pollerService) Stop(ctx context.Context) ControlResult {
  ps.mu.Lock()
  if !ps.running {
    ps.mu.Unlock()
    return ControlResult{Status: ControlAlreadyStopped, Message: "poller is not running"}
  }
  cancel := ps.cancel
  done := ps.done
  ps.running = false
  ps.cancel = nil
  ps.done = nil
  ps.mu.Unlock()

  if err := ps.ghCfg.SetPollerEnabled(ctx, nil, false); err != nil {
    ps.log.Warn("Failed to persist poller disabled flag", "error", err.Error())
  }

  cancel()
  <-done

  ps.log.Info("Background poller stopped")
  return ControlResult{Status: ControlStopped, Message: "background poller stopped"}
}

func (ps *pollerService) Status(ctx context.Context) (*PollerStatus, error) {
  ps.mu.Lock()
  running := ps.running
  alive := false
  if ps.done != nil {
    select {
    case <-ps.done:
    default:
      alive = true
    }
  }
  ps.mu.Unlock()

  status := &PollerStatus{IsRunning: running, TaskAlive: alive, PollingIntervalMinutes: 5}

  cfg, err := ps.ghCfg.Get(ctx, nil)
  if err != nil {
    return nil, err
  }
  if cfg != nil {
    status.PollerEnabled = cfg.PollerEnabled
    if cfg.PollingIntervalMinutes > 0 {
      status.PollingIntervalMinutes = cfg.PollingIntervalMinutes
    }
    status.LastPollTime = cfg.LastPollTime
  }

  tracked, err := ps.clients.ListTracked(ctx, nil)
  if err != nil {
    return nil, err
  }
  status.TrackedClients = len(tracked)

  return status, nil
}

func (ps *pollerService) PollNow(ctx context.Context) (*PollSummary, error) {
  return ps.runSinglePoll(ctx, true)
}

func (ps *pollerService) runLoop(ctx context.Context, done chan struct{}) {
  defer close(done)

  for {
    if ctx.Err() != nil {
      return
    }

    cfg, err := ps.ghCfg.Get(ctx, nil)
    if err != nil {
      ps.log.Error("Poll loop failed to load config", "error", err.Error())
      if !ps.sleep(ctx, errorBackoff) {
        return
      }
      continue
    }
    // Another replica or an admin may have flipped the persisted flag.
    if cfg == nil || !cfg.PollerEnabled {
      ps.log.Info("Poller disabled in config; loop exiting")
      ps.mu.Lock()
      ps.running = false
      ps.cancel = nil
      ps.done = nil
      ps.mu.Unlock()
      return
    }

    if _, err := ps.runSinglePoll(ctx, false); err != nil {
      ps.log.Error("Poll cycle failed", "error", err.Error())
      if !ps.sleep(ctx, errorBackoff) {
        return
      }
      continue
    }

    interval := time.Duration(cfg.PollingIntervalMinutes) * time.Minute
    if interval <= 0 {
      interval = 5 * time.Minute
    }
    if !ps.sleep(ctx, interval) {
      return
    }
  }
}

func (ps *pollerService) sleep(ctx context.Context, d time.Duration) bool {
  timer := time.NewTimer(d)
  defer timer.Stop()
  select {
  case <-ctx.Done():
    return false
  case <-timer.C:
    return true
  }
}

func (ps *pollerService) runSinglePoll(ctx context.Context, manual bool) (*PollSummary, error) {
  started := time.Now()
  summary := &PollSummary{StartedAt: started.UTC()}

  cfg, err := ps.ghCfg.Get(ctx, nil)
  if err != nil {
    return nil, err
  }
  if cfg == nil || strings.TrimSpace(cfg.APIKey) == "" {
    return nil, ErrGitHubKeyNotConfigured
  }
  gh := ps.ghFactory(cfg.APIKey)

  clients, err := ps.clients.ListTracked(ctx, nil)
  if err != nil {
    return nil, err
  }

  autoAnalyze := ps.ai.AutoAnalysisEnabled(ctx)

  analyzed := 0
  for _, client := range clients {
    summary.ClientsPolled++
    newCount, analyzedCount, err := ps.pollClient(ctx, gh, client, manual, autoAnalyze, maxAnalysesPerCycle-analyzed)
    if err != nil {
      // One broken repo must not stop the rest of the cycle.
      ps.log.Warn("Client poll failed",
        "client", client.ClientString(),
        "github_url", client.GithubURL,
        "error", err.Error(),
      )
      summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", client.ClientString(), err))
      continue
    }
    summary.NewReleases += newCount
    analyzed += analyzedCount
  }
  summary.Analyzed = analyzed

  if err := ps.ghCfg.SetLastPollTime(ctx, nil, time.Now().UTC()); err != nil {
    ps.log.Warn("Failed to record last poll time", "error", err.Error())
  }

  summary.DurationMS = time.Since(started).Milliseconds()
  ps.log.Info("Poll cycle complete",
    "clients_polled", summary.ClientsPolled,
    "new_releases", summary.NewReleases,
    "analyzed", summary.Analyzed,
    "errors", len(summary.Errors),
    "duration_ms", summary.DurationMS,
  )
  return summary, nil
}

func (ps *pollerService) pollClient(ctx context.Context, gh github.Client, client *types.Client, manual, autoAnalyze bool, analysisBudget int) (int, int, error) {
  owner, repo, err := gh.ParseRepoURL(client.GithubURL)
  if err != nil {
    return 0, 0, err
  }

  var releases []github.Release
  if client.RepoType == types.RepoTypeTags {
    releases, err = gh.GetRecentTags(ctx, owner, repo, releasesPerClient)
  } else {
    releases, err = gh.GetRecentReleases(ctx, owner, repo, releasesPerClient)
  }
  if err != nil {
    return 0, 0, err
  }

  clientName := client.ClientString()
  newCount := 0
  analyzedCount := 0

  for _, release := range releases {
    if release.Draft {
      continue
    }
    if release.TagName == "" {
      continue
    }

    exists, err := ps.updates.ExistsByClientAndTag(ctx, nil, clientName, release.TagName)
    if err != nil {
      return newCount, analyzedCount, err
    }
    if exists {
      continue
    }

    update := ps.normalizeRelease(client, clientName, release)

    fork := ps.ai.DetectHardFork(release.Body)
    if fork.IsHardFork {
      update.HardFork = true
      update.ActivationBlock = fork.ActivationBlock
      update.ActivationDate = fork.ActivationDate
      update.CoordinationRequired = fork.CoordinationRequired
      update.AIHardForkDetails = fork.Details
    }

    created, err := ps.updates.Create(ctx, nil, update)
    if err != nil {
      // Another poll can win the race between the exists check and the
      // insert; the unique index on (client, tag) fails the loser.
      if errors.Is(err, gorm.ErrDuplicatedKey) {
        continue
      }
      return newCount, analyzedCount, err
    }
    newCount++

    if autoAnalyze && len(strings.TrimSpace(release.Body)) >= minAnalysisNotesChars && analysisBudget-analyzedCount > 0 {
      if manual {
        // Keep the HTTP handler snappy: analyze out of band and let
        // oversized notes wait for the next scheduled cycle.
        if len(release.Body) <= manualAnalysisNotesLimit {
          analyzedCount++
          go ps.analyzeUpdate(context.Background(), created, clientName)
        }
      } else {
        analyzedCount++
        ps.analyzeUpdate(ctx, created, clientName)
      }
    }

    if _, err := ps.notifier.SendProtocolUpdateNotifications(ctx, created); err != nil {
      ps.log.Warn("Notification dispatch failed",
        "client", clientName,
        "tag", created.Tag,
        "error", err.Error(),
      )
    }
  }

  return newCount, analyzedCount, nil
}

func (ps *pollerService) normalizeRelease(client *types.Client, clientName string, release github.Release) *types.ProtocolUpdate {
  date := time.Now().UTC()
  if release.PublishedAt != nil {
    date = release.PublishedAt.UTC()
  }

  title := release.Name
  if title == "" {
    title = release.TagName
  }

  return &types.ProtocolUpdate{
    ID:           uuid.New(),
    Name:         client.DisplayName(),
    Title:        title,
    Client:       clientName,
    ClientID:     &client.ID,
    Tag:          release.TagName,
    Date:         date,
    URL:          release.HTMLURL,
    Notes:        release.Body,
    GithubURL:    client.GithubURL,
    IsDraft:      release.Draft,
    IsPrerelease: release.Prerelease,
  }
}

func (ps *pollerService) analyzeUpdate(ctx context.Context, update *types.ProtocolUpdate, clientName string) {
  result, err := ps.ai.AnalyzeReleaseNotes(ctx, clientName, update.Tag, update.Notes)
  if err != nil {
    ps.log.Warn("AI analysis errored", "client", clientName, "tag", update.Tag, "error", err.Error())
    return
  }
  if result == nil {
    return
  }

  fields := map[string]any{
    "ai_summary":           result.Summary,
    "ai_upgrade_priority":  result.UpgradePriority,
    "ai_risk_assessment":   result.RiskAssessment,
    "ai_technical_summary": result.TechnicalSummary,
    "ai_executive_summary": result.ExecutiveSummary,
    "ai_estimated_impact":  result.EstimatedImpact,
    "ai_confidence_score":  result.ConfidenceScore,
    "ai_provider":          result.Provider,
  }
  if b, err := jsonMarshal(result.KeyChanges); err == nil {
    fields["ai_key_changes"] = b
  }
  if b, err := jsonMarshal(result.BreakingChanges); err == nil {
    fields["ai_breaking_changes"] = b
  }
  if b, err := jsonMarshal(result.SecurityUpdates); err == nil {
    fields["ai_security_updates"] = b
  }

  if err := ps.updates.ApplyAIAnalysis(ctx, nil, update.ID, fields); err != nil {
    ps.log.Warn("Failed to persist AI analysis", "client", clientName, "tag", update.Tag, "error", err.Error())
  }
}

func jsonMarshal(v any) (datatypes.JSON, error) {
  if v == nil {
    return datatypes.JSON("[]"), nil
  }
  b, err := json.Marshal(v)
  if err != nil {
    return nil, err
  }
  return datatypes.JSON(b), nil
}
