package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "regexp"
  "strconv"
  "strings"
  "time"

  "gorm.io/gorm"

  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

// AIAnalysisResult is the structured output of a release notes analysis.
type AIAnalysisResult struct {
  Summary          string   `json:"summary"`
  KeyChanges       []string `json:"key_changes"`
  BreakingChanges  []string `json:"breaking_changes"`
  SecurityUpdates  []string `json:"security_updates"`
  UpgradePriority  string   `json:"upgrade_priority"`
  RiskAssessment   string   `json:"risk_assessment"`
  TechnicalSummary string   `json:"technical_summary"`
  ExecutiveSummary string   `json:"executive_summary"`
  EstimatedImpact  string   `json:"estimated_impact"`
  ConfidenceScore  float64  `json:"confidence_score"`
  Provider         string   `json:"-"`
}

// HardForkInfo is the result of the regex based hard fork heuristic.
type HardForkInfo struct {
  IsHardFork           bool       `json:"is_hard_fork"`
  ActivationBlock      *int64     `json:"activation_block,omitempty"`
  ActivationDate       *time.Time `json:"activation_date,omitempty"`
  CoordinationRequired bool       `json:"coordination_required"`
  Details              string     `json:"details,omitempty"`
}

type AIService interface {
  // AnalyzeReleaseNotes asks the configured provider for a structured
  // analysis. A nil result with a nil error means analysis was skipped
  // or failed; polling must never break on an AI outage.
  AnalyzeReleaseNotes(ctx context.Context, clientName, tag, notes string) (*AIAnalysisResult, error)
  // AutoAnalysisEnabled reports whether background polling should queue
  // newly discovered releases for analysis. Explicit analyze requests
  // from the API bypass this and only require AIEnabled.
  AutoAnalysisEnabled(ctx context.Context) bool
  DetectHardFork(notes string) HardForkInfo
  EstimateImportance(tag, notes string, prerelease bool) string
  TestConnection(ctx context.Context) error
}

type aiService struct {
  db         *gorm.DB
  log        *logger.Logger
  aiCfgRepo  repos.AIConfigRepo
  httpClient *http.Client
}

func NewAIService(db *gorm.DB, baseLog *logger.Logger, aiCfgRepo repos.AIConfigRepo) AIService {
  return &aiService{
    db:         db,
    log:        baseLog.With("service", "AIService"),
    aiCfgRepo:  aiCfgRepo,
    httpClient: &http.Client{},
  }
}

const maxNotesChars = 8000

// Notes shorter than this carry nothing worth a provider round trip.
const minAnalysisNotesChars = 10

func buildAnalysisPrompt(clientName, tag, notes string) string {
  trimmed := strings.TrimSpace(notes)
  if len(trimmed) > maxNotesChars {
    trimmed = trimmed[:maxNotesChars]
  }
  var b strings.Builder
  b.WriteString("You are an expert blockchain infrastructure analyst. Analyze the following client release and respond with a single JSON object only, no markdown fences.\n\n")
  b.WriteString(fmt.Sprintf("Client: %s\nVersion: %s\n\nRelease notes:\n%s\n\n", clientName, tag, trimmed))
  b.WriteString(`Respond with JSON of this exact shape:
{
  "summary": "2-3 sentence overview",
  "key_changes": ["..."],
  "breaking_changes": ["..."],
  "security_updates": ["..."],
  "upgrade_priority": "critical|high|medium|low",
  "risk_assessment": "short paragraph",
  "technical_summary": "paragraph for node operators",
  "executive_summary": "paragraph for non-technical stakeholders",
  "estimated_impact": "high|medium|low",
  "confidence_score": 0.0
}`)
  return b.String()
}

func (as *aiService) AnalyzeReleaseNotes(ctx context.Context, clientName, tag, notes string) (*AIAnalysisResult, error) {
  cfg, err := as.aiCfgRepo.GetOrCreate(ctx, nil)
  if err != nil {
    return nil, err
  }
  if !cfg.AIEnabled || strings.TrimSpace(cfg.APIKey) == "" && cfg.Provider != types.AIProviderLocal {
    return nil, nil
  }
  if len(strings.TrimSpace(notes)) < minAnalysisNotesChars {
    return nil, nil
  }

  timeout := time.Duration(cfg.AnalysisTimeoutSeconds) * time.Second
  if timeout <= 0 {
    timeout = 60 * time.Second
  }
  ctx, cancel := context.WithTimeout(ctx, timeout)
  defer cancel()

  prompt := buildAnalysisPrompt(clientName, tag, notes)

  var raw string
  switch cfg.Provider {
  case types.AIProviderAnthropic:
    raw, err = as.completeAnthropic(ctx, cfg, prompt)
  case types.AIProviderLocal:
    raw, err = as.completeOpenAI(ctx, cfg, prompt, false)
  default:
    raw, err = as.completeOpenAI(ctx, cfg, prompt, true)
  }
  if err != nil {
    as.log.Warn("AI analysis failed",
      "provider", cfg.Provider,
      "client", clientName,
      "tag", tag,
      "error", err.Error(),
    )
    return nil, nil
  }

  result, err := parseAnalysisJSON(raw)
  if err != nil {
    as.log.Warn("AI analysis returned unparseable output",
      "provider", cfg.Provider,
      "client", clientName,
      "tag", tag,
      "error", err.Error(),
    )
    return nil, nil
  }
  result.Provider = cfg.Provider
  return result, nil
}

func (as *aiService) AutoAnalysisEnabled(ctx context.Context) bool {
  cfg, err := as.aiCfgRepo.GetOrCreate(ctx, nil)
  if err != nil {
    as.log.Warn("Failed to load AI config", "error", err.Error())
    return false
  }
  if !cfg.AIEnabled || !cfg.AutoAnalyzeEnabled {
    return false
  }
  return strings.TrimSpace(cfg.APIKey) != "" || cfg.Provider == types.AIProviderLocal
}

type openAIChatRequest struct {
  Model               string              `json:"model"`
  Messages            []openAIChatMessage `json:"messages"`
  MaxTokens           int                 `json:"max_tokens,omitempty"`
  MaxCompletionTokens int                 `json:"max_completion_tokens,omitempty"`
  Temperature         *float64            `json:"temperature,omitempty"`
}

type openAIChatMessage struct {
  Role    string `json:"role"`
  Content string `json:"content"`
}

type openAIChatResponse struct {
  Choices []struct {
    Message struct {
      Content string `json:"content"`
    } `json:"message"`
  } `json:"choices"`
}

// usesCompletionTokens reports whether the model rejects the legacy
// max_tokens and temperature parameters.
func usesCompletionTokens(model string) bool {
  m := strings.ToLower(strings.TrimSpace(model))
  return strings.HasPrefix(m, "gpt-5") || strings.HasPrefix(m, "o1")
}

func (as *aiService) completeOpenAI(ctx context.Context, cfg *types.AIConfig, prompt string, auth bool) (string, error) {
  baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
  if baseURL == "" {
    if cfg.Provider == types.AIProviderLocal {
      baseURL = "http://localhost:11434"
    } else {
      baseURL = "https://api.openai.com"
    }
  }
  model := strings.TrimSpace(cfg.Model)
  if model == "" {
    model = "gpt-4o-mini"
  }

  req := openAIChatRequest{
    Model:    model,
    Messages: []openAIChatMessage{{Role: "user", Content: prompt}},
  }
  if usesCompletionTokens(model) {
    req.MaxCompletionTokens = 2000
  } else {
    req.MaxTokens = 2000
    temp := 0.1
    req.Temperature = &temp
  }

  headers := map[string]string{"Content-Type": "application/json"}
  if auth {
    headers["Authorization"] = "Bearer " + strings.TrimSpace(cfg.APIKey)
  }

  raw, err := as.post(ctx, baseURL+"/v1/chat/completions", headers, req)
  if err != nil {
    return "", err
  }

  var resp openAIChatResponse
  if err := json.Unmarshal(raw, &resp); err != nil {
    return "", fmt.Errorf("decode chat completion: %w", err)
  }
  if len(resp.Choices) == 0 {
    return "", fmt.Errorf("chat completion returned no choices")
  }
  return resp.Choices[0].Message.Content, nil
}

type anthropicRequest struct {
  Model     string              `json:"model"`
  MaxTokens int                 `json:"max_tokens"`
  Messages  []openAIChatMessage `json:"messages"`
}

type anthropicResponse struct {
  Content []struct {
    Type string `json:"type"`
    Text string `json:"text"`
  } `json:"content"`
}

func (as *aiService) completeAnthropic(ctx context.Context, cfg *types.AIConfig, prompt string) (string, error) {
  baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
  if baseURL == "" {
    baseURL = "https://api.anthropic.com"
  }
  model := strings.TrimSpace(cfg.Model)
  if model == "" {
    model = "claude-3-5-haiku-20241022"
  }

  req := anthropicRequest{
    Model:     model,
    MaxTokens: 2000,
    Messages:  []openAIChatMessage{{Role: "user", Content: prompt}},
  }
  headers := map[string]string{
    "Content-Type":      "application/json",
    "x-api-key":         strings.TrimSpace(cfg.APIKey),
    "anthropic-version": "2023-06-01",
  }

  raw, err := as.post(ctx, baseURL+"/v1/messages", headers, req)
  if err != nil {
    return "", err
  }

  var resp anthropicResponse
  if err := json.Unmarshal(raw, &resp); err != nil {
    return "", fmt.Errorf("decode anthropic response: %w", err)
  }
  for _, block := range resp.Content {
    if block.Type == "text" && block.Text != "" {
      return block.Text, nil
    }
  }
  return "", fmt.Errorf("anthropic response had no text block")
}

func (as *aiService) post(ctx context.Context, url string, headers map[string]string, body any) ([]byte, error) {
  var buf bytes.Buffer
  if err := json.NewEncoder(&buf).Encode(body); err != nil {
    return nil, err
  }
  req, err := http.NewRequestWithContext(ctx, "POST", url, &buf)
  if err != nil {
    return nil, err
  }
  for k, v := range headers {
    req.Header.Set(k, v)
  }
  resp, err := as.httpClient.Do(req)
  if err != nil {
    return nil, err
  }
  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return nil, readErr
  }
  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return nil, fmt.Errorf("ai provider http %d: %s", resp.StatusCode, string(raw))
  }
  return raw, nil
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseAnalysisJSON tolerates models that wrap the JSON object in prose
// or markdown fences by extracting the outermost braces.
func parseAnalysisJSON(raw string) (*AIAnalysisResult, error) {
  trimmed := strings.TrimSpace(raw)

  var result AIAnalysisResult
  if err := json.Unmarshal([]byte(trimmed), &result); err == nil {
    return &result, nil
  }

  extracted := jsonObjectPattern.FindString(trimmed)
  if extracted == "" {
    return nil, fmt.Errorf("no JSON object in model output")
  }
  if err := json.Unmarshal([]byte(extracted), &result); err != nil {
    return nil, fmt.Errorf("parse extracted JSON: %w", err)
  }
  return &result, nil
}

func (as *aiService) TestConnection(ctx context.Context) error {
  result, err := as.AnalyzeReleaseNotes(ctx, "connectivity-check", "v0.0.0", "Routine maintenance release with minor bug fixes.")
  if err != nil {
    return err
  }
  if result == nil {
    return fmt.Errorf("analysis returned no result; check provider, api key and model")
  }
  return nil
}

var hardForkIndicators = []*regexp.Regexp{
  regexp.MustCompile(`(?i)hard\s*fork`),
  regexp.MustCompile(`(?i)network\s+upgrade`),
  regexp.MustCompile(`(?i)consensus\s+(?:change|upgrade|breaking)`),
  regexp.MustCompile(`(?i)mandatory\s+upgrade`),
  regexp.MustCompile(`(?i)protocol\s+upgrade`),
  regexp.MustCompile(`(?i)chain\s+split`),
  regexp.MustCompile(`(?i)backwards?\s*-?\s*incompatible`),
}

var activationBlockPatterns = []*regexp.Regexp{
  regexp.MustCompile(`(?i)activat\w*\s+at\s+block\s+#?([\d,_]+)`),
  regexp.MustCompile(`(?i)block\s+(?:height\s+)?#?([\d,_]+)`),
  regexp.MustCompile(`(?i)height\s+#?([\d,_]+)`),
  regexp.MustCompile(`(?i)epoch\s+#?([\d,_]+)`),
}

var activationDatePatterns = []*regexp.Regexp{
  regexp.MustCompile(`(?i)activat\w*\s+on\s+(\d{4}-\d{2}-\d{2})`),
  regexp.MustCompile(`(?i)scheduled\s+for\s+(\d{4}-\d{2}-\d{2})`),
  regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
}

var coordinationPatterns = []*regexp.Regexp{
  regexp.MustCompile(`(?i)all\s+(?:node\s+)?operators?\s+must`),
  regexp.MustCompile(`(?i)must\s+upgrade\s+before`),
  regexp.MustCompile(`(?i)required\s+(?:for|before)\s+(?:the\s+)?(?:fork|upgrade)`),
  regexp.MustCompile(`(?i)coordinat\w+`),
}

// DetectHardFork runs the ordered pattern lists against the notes.
// The first matching pattern in each list wins.
func (as *aiService) DetectHardFork(notes string) HardForkInfo {
  info := HardForkInfo{}
  text := strings.TrimSpace(notes)
  if text == "" {
    return info
  }

  // Coordination language can appear without a fork indicator, for
  // example a synchronized rollout of a non-consensus change.
  for _, p := range coordinationPatterns {
    if p.MatchString(text) {
      info.CoordinationRequired = true
      break
    }
  }

  for _, p := range hardForkIndicators {
    if loc := p.FindString(text); loc != "" {
      info.IsHardFork = true
      info.Details = loc
      break
    }
  }
  if !info.IsHardFork {
    return info
  }

  // A hard fork always needs operator coordination even when the notes
  // do not spell it out.
  info.CoordinationRequired = true

  for _, p := range activationBlockPatterns {
    if m := p.FindStringSubmatch(text); m != nil {
      digits := strings.NewReplacer(",", "", "_", "").Replace(m[1])
      if block, err := strconv.ParseInt(digits, 10, 64); err == nil && block > 0 {
        info.ActivationBlock = &block
        break
      }
    }
  }

  for _, p := range activationDatePatterns {
    if m := p.FindStringSubmatch(text); m != nil {
      if parsed, err := time.Parse("2006-01-02", m[1]); err == nil {
        info.ActivationDate = &parsed
        break
      }
    }
  }

  return info
}

var criticalKeywords = []string{"critical", "security", "vulnerability", "cve-", "exploit", "hard fork", "hardfork", "mandatory"}
var notableKeywords = []string{"breaking", "consensus", "upgrade required", "deprecat", "performance", "major"}

// EstimateImportance is a cheap keyword heuristic used when AI analysis
// is unavailable.
func (as *aiService) EstimateImportance(tag, notes string, prerelease bool) string {
  text := strings.ToLower(tag + " " + notes)
  for _, kw := range criticalKeywords {
    if strings.Contains(text, kw) {
      return "high"
    }
  }
  if prerelease {
    return "low"
  }
  for _, kw := range notableKeywords {
    if strings.Contains(text, kw) {
      return "medium"
    }
  }
  if strings.HasSuffix(strings.TrimSpace(tag), ".0") {
    return "medium"
  }
  return "low"
}
