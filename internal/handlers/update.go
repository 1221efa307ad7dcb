package handlers

import (
  "net/http"
  "strconv"
  "time"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/services"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type UpdateHandler struct {
  updateRepo repos.ProtocolUpdateRepo
  aiService  services.AIService
}

func NewUpdateHandler(updateRepo repos.ProtocolUpdateRepo, aiService services.AIService) *UpdateHandler {
  return &UpdateHandler{updateRepo: updateRepo, aiService: aiService}
}

func (uh *UpdateHandler) List(c *gin.Context) {
  limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
  offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

  if clientName := c.Query("client"); clientName != "" {
    updates, err := uh.updateRepo.ListByClientString(c.Request.Context(), nil, clientName)
    if err != nil {
      c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
      return
    }
    c.JSON(http.StatusOK, gin.H{"updates": updates})
    return
  }

  updates, err := uh.updateRepo.List(c.Request.Context(), nil, limit, offset)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"updates": updates})
}

type createUpdateRequest struct {
  Client       string     `json:"client" binding:"required"`
  Tag          string     `json:"tag" binding:"required"`
  Name         string     `json:"name"`
  Title        string     `json:"title"`
  Date         *time.Time `json:"date"`
  URL          string     `json:"url"`
  Notes        string     `json:"notes"`
  GithubURL    string     `json:"github_url"`
  Ticket       string     `json:"ticket"`
  IsPrerelease bool       `json:"is_prerelease"`
  HardFork     bool       `json:"hard_fork"`
}

func (uh *UpdateHandler) Create(c *gin.Context) {
  var req createUpdateRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  exists, err := uh.updateRepo.ExistsByClientAndTag(c.Request.Context(), nil, req.Client, req.Tag)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if exists {
    c.JSON(http.StatusConflict, gin.H{"error": "update already exists for this client and tag"})
    return
  }

  title := req.Title
  if title == "" {
    title = req.Tag
  }
  date := time.Now().UTC()
  if req.Date != nil {
    date = *req.Date
  }
  update := &types.ProtocolUpdate{
    ID:           uuid.New(),
    Client:       req.Client,
    Tag:          req.Tag,
    Name:         req.Name,
    Title:        title,
    Date:         date,
    URL:          req.URL,
    Notes:        req.Notes,
    GithubURL:    req.GithubURL,
    Ticket:       req.Ticket,
    IsPrerelease: req.IsPrerelease,
    HardFork:     req.HardFork,
  }
  created, err := uh.updateRepo.Create(c.Request.Context(), nil, update)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusCreated, gin.H{"update": created})
}

type patchUpdateRequest struct {
  Name     *string    `json:"name"`
  Title    *string    `json:"title"`
  Notes    *string    `json:"notes"`
  Ticket   *string    `json:"ticket"`
  IsClosed *bool      `json:"is_closed"`
  HardFork *bool      `json:"hard_fork"`
  Date     *time.Time `json:"date"`
}

func (uh *UpdateHandler) Patch(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update id"})
    return
  }
  var req patchUpdateRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  update, err := uh.updateRepo.GetByID(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "update not found"})
    return
  }
  if req.Name != nil {
    update.Name = *req.Name
  }
  if req.Title != nil {
    update.Title = *req.Title
  }
  if req.Notes != nil {
    update.Notes = *req.Notes
  }
  if req.Ticket != nil {
    update.Ticket = *req.Ticket
  }
  if req.IsClosed != nil {
    update.IsClosed = *req.IsClosed
  }
  if req.HardFork != nil {
    update.HardFork = *req.HardFork
  }
  if req.Date != nil {
    update.Date = *req.Date
  }
  saved, err := uh.updateRepo.Update(c.Request.Context(), nil, update)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"update": saved})
}

func (uh *UpdateHandler) Get(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update id"})
    return
  }
  update, err := uh.updateRepo.GetByID(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "update not found"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"update": update})
}

// Analyze re-runs AI analysis for one update on demand.
func (uh *UpdateHandler) Analyze(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update id"})
    return
  }
  update, err := uh.updateRepo.GetByID(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "update not found"})
    return
  }

  result, err := uh.aiService.AnalyzeReleaseNotes(c.Request.Context(), update.Client, update.Tag, update.Notes)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if result == nil {
    c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ai analysis unavailable; check ai configuration"})
    return
  }

  fields := map[string]interface{}{
    "ai_summary":           result.Summary,
    "ai_upgrade_priority":  result.UpgradePriority,
    "ai_risk_assessment":   result.RiskAssessment,
    "ai_technical_summary": result.TechnicalSummary,
    "ai_executive_summary": result.ExecutiveSummary,
    "ai_estimated_impact":  result.EstimatedImpact,
    "ai_confidence_score":  result.ConfidenceScore,
    "ai_provider":          result.Provider,
  }
  if err := uh.updateRepo.ApplyAIAnalysis(c.Request.Context(), nil, update.ID, fields); err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }

  refreshed, err := uh.updateRepo.GetByID(c.Request.Context(), nil, update.ID)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"update": refreshed, "analysis": result})
}
