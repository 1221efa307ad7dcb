package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "strings"
  "time"

  "gorm.io/gorm"

  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

// Releases older than this are recorded but never announced; backfilling
// a client's history must not flood every channel.
const notificationFreshnessWindow = 7 * 24 * time.Hour

type NotificationService interface {
  // SendProtocolUpdateNotifications fans an update out to every enabled
  // channel. The result maps channel name to delivery success.
  SendProtocolUpdateNotifications(ctx context.Context, update *types.ProtocolUpdate) (map[string]bool, error)
  SendDiscordWebhook(ctx context.Context, webhookURL string, update *types.ProtocolUpdate) error
  SendSlackWebhook(ctx context.Context, webhookURL string, update *types.ProtocolUpdate) error
  SendGenericWebhook(ctx context.Context, webhookURL string, headers map[string]string, update *types.ProtocolUpdate) error
  TestWebhook(ctx context.Context, channel, webhookURL string) error
}

type notificationService struct {
  db         *gorm.DB
  log        *logger.Logger
  notifRepo  repos.NotificationConfigRepo
  clientRepo repos.ClientRepo
  httpClient *http.Client
}

func NewNotificationService(db *gorm.DB, baseLog *logger.Logger, notifRepo repos.NotificationConfigRepo, clientRepo repos.ClientRepo) NotificationService {
  return &notificationService{
    db:         db,
    log:        baseLog.With("service", "NotificationService"),
    notifRepo:  notifRepo,
    clientRepo: clientRepo,
    httpClient: &http.Client{Timeout: 15 * time.Second},
  }
}

// webhookURLsFor merges the legacy single URL column with the newer JSON
// list, deduplicating while preserving order.
func webhookURLsFor(legacy string, multi []byte) []string {
  seen := map[string]struct{}{}
  out := []string{}

  add := func(u string) {
    u = strings.TrimSpace(u)
    if u == "" {
      return
    }
    if _, ok := seen[u]; ok {
      return
    }
    seen[u] = struct{}{}
    out = append(out, u)
  }

  add(legacy)
  if len(multi) > 0 {
    var urls []string
    if err := json.Unmarshal(multi, &urls); err == nil {
      for _, u := range urls {
        add(u)
      }
    }
  }
  return out
}

func (ns *notificationService) SendProtocolUpdateNotifications(ctx context.Context, update *types.ProtocolUpdate) (map[string]bool, error) {
  results := map[string]bool{}
  if update == nil {
    return results, nil
  }

  cfg, err := ns.notifRepo.Get(ctx, nil)
  if err != nil {
    return nil, err
  }
  if cfg == nil || !cfg.NotificationsEnabled {
    return results, nil
  }

  if time.Since(update.Date) > notificationFreshnessWindow {
    ns.log.Debug("Skipping notification for stale release",
      "client", update.Client,
      "tag", update.Tag,
      "release_date", update.Date,
    )
    return results, nil
  }

  if muted, err := ns.clientMuted(ctx, update.Client); err != nil {
    return nil, err
  } else if muted {
    ns.log.Debug("Notifications muted for client", "client", update.Client)
    return results, nil
  }

  if cfg.DiscordEnabled {
    if urls := webhookURLsFor(cfg.DiscordWebhookURL, cfg.DiscordWebhookURLs); len(urls) > 0 {
      ok := true
      for _, u := range urls {
        if err := ns.SendDiscordWebhook(ctx, u, update); err != nil {
          ns.log.Warn("Discord notification failed", "tag", update.Tag, "error", err.Error())
          ok = false
        }
      }
      results["discord"] = ok
    }
  }

  if cfg.SlackEnabled {
    if urls := webhookURLsFor(cfg.SlackWebhookURL, cfg.SlackWebhookURLs); len(urls) > 0 {
      ok := true
      for _, u := range urls {
        if err := ns.SendSlackWebhook(ctx, u, update); err != nil {
          ns.log.Warn("Slack notification failed", "tag", update.Tag, "error", err.Error())
          ok = false
        }
      }
      results["slack"] = ok
    }
  }

  if cfg.GenericEnabled {
    headers := map[string]string{}
    if len(cfg.GenericHeaders) > 0 {
      _ = json.Unmarshal(cfg.GenericHeaders, &headers)
    }
    if urls := webhookURLsFor(cfg.GenericWebhookURL, cfg.GenericWebhookURLs); len(urls) > 0 {
      ok := true
      for _, u := range urls {
        if err := ns.SendGenericWebhook(ctx, u, headers, update); err != nil {
          ns.log.Warn("Generic webhook failed", "tag", update.Tag, "error", err.Error())
          ok = false
        }
      }
      results["generic"] = ok
    }
  }

  return results, nil
}

func (ns *notificationService) clientMuted(ctx context.Context, clientName string) (bool, error) {
  client, err := ns.clientRepo.GetByName(ctx, nil, clientName)
  if err != nil {
    return false, err
  }
  if client == nil {
    return false, nil
  }
  settings, err := ns.notifRepo.GetClientSettings(ctx, nil, client.ID)
  if err != nil {
    return false, err
  }
  if settings == nil {
    return false, nil
  }
  return !settings.NotificationsEnabled, nil
}

func truncateNotes(notes string, max int) string {
  trimmed := strings.TrimSpace(notes)
  if trimmed == "" {
    return "No release notes provided."
  }
  if len(trimmed) <= max {
    return trimmed
  }
  return trimmed[:max] + "..."
}

const (
  discordColorHardFork = 0xffa500
  discordColorRelease  = 0x00ff00
)

func (ns *notificationService) SendDiscordWebhook(ctx context.Context, webhookURL string, update *types.ProtocolUpdate) error {
  color := discordColorRelease
  title := fmt.Sprintf("New Release: %s %s", update.Client, update.Tag)
  if update.HardFork {
    color = discordColorHardFork
    title = fmt.Sprintf("Hard Fork Release: %s %s", update.Client, update.Tag)
  }

  fields := []map[string]any{
    {"name": "Client", "value": update.Client, "inline": true},
    {"name": "Version", "value": update.Tag, "inline": true},
  }
  if update.AIUpgradePriority != "" {
    fields = append(fields, map[string]any{"name": "Upgrade Priority", "value": update.AIUpgradePriority, "inline": true})
  }
  if update.ActivationBlock != nil {
    fields = append(fields, map[string]any{"name": "Activation Block", "value": fmt.Sprintf("%d", *update.ActivationBlock), "inline": true})
  }

  summary := update.AISummary
  if summary == "" {
    summary = truncateNotes(update.Notes, 500)
  }

  payload := map[string]any{
    "embeds": []map[string]any{
      {
        "title":       title,
        "description": summary,
        "url":         update.URL,
        "color":       color,
        "fields":      fields,
        "timestamp":   update.Date.UTC().Format(time.RFC3339),
      },
    },
  }

  status, body, err := ns.post(ctx, webhookURL, nil, payload)
  if err != nil {
    return err
  }
  // Discord replies 204 No Content on success.
  if status != http.StatusNoContent && (status < 200 || status >= 300) {
    return fmt.Errorf("discord webhook http %d: %s", status, body)
  }
  return nil
}

func (ns *notificationService) SendSlackWebhook(ctx context.Context, webhookURL string, update *types.ProtocolUpdate) error {
  color := "#00ff00"
  prefix := "New release"
  if update.HardFork {
    color = "#ffa500"
    prefix = "Hard fork release"
  }

  summary := update.AISummary
  if summary == "" {
    summary = truncateNotes(update.Notes, 300)
  }

  payload := map[string]any{
    "text": fmt.Sprintf("%s: %s %s", prefix, update.Client, update.Tag),
    "attachments": []map[string]any{
      {
        "color": color,
        "fields": []map[string]any{
          {"title": "Client", "value": update.Client, "short": true},
          {"title": "Version", "value": update.Tag, "short": true},
          {"title": "Summary", "value": summary, "short": false},
          {"title": "Link", "value": update.URL, "short": false},
        },
      },
    },
  }

  status, body, err := ns.post(ctx, webhookURL, nil, payload)
  if err != nil {
    return err
  }
  // Slack replies 200 with body "ok".
  if status != http.StatusOK {
    return fmt.Errorf("slack webhook http %d: %s", status, body)
  }
  return nil
}

func (ns *notificationService) SendGenericWebhook(ctx context.Context, webhookURL string, headers map[string]string, update *types.ProtocolUpdate) error {
  payload := map[string]any{
    "event":     "protocol_update",
    "timestamp": time.Now().UTC().Format(time.RFC3339),
    "update":    update,
  }

  status, body, err := ns.post(ctx, webhookURL, headers, payload)
  if err != nil {
    return err
  }
  if status < 200 || status >= 300 {
    return fmt.Errorf("generic webhook http %d: %s", status, body)
  }
  return nil
}

func (ns *notificationService) TestWebhook(ctx context.Context, channel, webhookURL string) error {
  now := time.Now().UTC()
  sample := &types.ProtocolUpdate{
    Client: "test-client",
    Tag:    "v0.0.0-test",
    Date:   now,
    Notes:  "Connectivity test from Protocol Tracker.",
  }
  switch channel {
  case "discord":
    return ns.SendDiscordWebhook(ctx, webhookURL, sample)
  case "slack":
    return ns.SendSlackWebhook(ctx, webhookURL, sample)
  case "generic":
    return ns.SendGenericWebhook(ctx, webhookURL, nil, sample)
  default:
    return fmt.Errorf("unknown notification channel: %s", channel)
  }
}

func (ns *notificationService) post(ctx context.Context, url string, headers map[string]string, payload any) (int, string, error) {
  var buf bytes.Buffer
  if err := json.NewEncoder(&buf).Encode(payload); err != nil {
    return 0, "", err
  }
  req, err := http.NewRequestWithContext(ctx, "POST", url, &buf)
  if err != nil {
    return 0, "", err
  }
  req.Header.Set("Content-Type", "application/json")
  for k, v := range headers {
    req.Header.Set(k, v)
  }

  resp, err := ns.httpClient.Do(req)
  if err != nil {
    return 0, "", err
  }
  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return resp.StatusCode, "", readErr
  }
  return resp.StatusCode, string(raw), nil
}
