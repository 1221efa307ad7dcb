package handlers

import (
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type ClientHandler struct {
  clientRepo repos.ClientRepo
  updateRepo repos.ProtocolUpdateRepo
  notifRepo  repos.NotificationConfigRepo
}

func NewClientHandler(clientRepo repos.ClientRepo, updateRepo repos.ProtocolUpdateRepo, notifRepo repos.NotificationConfigRepo) *ClientHandler {
  return &ClientHandler{clientRepo: clientRepo, updateRepo: updateRepo, notifRepo: notifRepo}
}

type clientRequest struct {
  Name      string `json:"name"`
  Client    string `json:"client"`
  GithubURL string `json:"github_url"`
  RepoType  string `json:"repo_type"`
}

func (ch *ClientHandler) Create(c *gin.Context) {
  var req clientRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  if req.Name == "" && req.Client == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "name or client is required"})
    return
  }
  repoType := req.RepoType
  if repoType == "" {
    repoType = types.RepoTypeReleases
  }
  client := &types.Client{
    ID:        uuid.New(),
    Name:      req.Name,
    Client:    req.Client,
    GithubURL: req.GithubURL,
    RepoType:  repoType,
  }
  created, err := ch.clientRepo.Create(c.Request.Context(), nil, client)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusCreated, gin.H{"client": created})
}

func (ch *ClientHandler) List(c *gin.Context) {
  clients, err := ch.clientRepo.List(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"clients": clients})
}

func (ch *ClientHandler) Get(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
    return
  }
  client, err := ch.clientRepo.GetByID(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"client": client})
}

func (ch *ClientHandler) Update(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
    return
  }
  client, err := ch.clientRepo.GetByID(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
    return
  }
  var req clientRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  if req.Name != "" {
    client.Name = req.Name
  }
  if req.Client != "" {
    client.Client = req.Client
  }
  if req.GithubURL != "" {
    client.GithubURL = req.GithubURL
  }
  if req.RepoType != "" {
    client.RepoType = req.RepoType
  }
  updated, err := ch.clientRepo.Update(c.Request.Context(), nil, client)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"client": updated})
}

func (ch *ClientHandler) Delete(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
    return
  }
  if err := ch.clientRepo.Delete(c.Request.Context(), nil, id); err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (ch *ClientHandler) ListUpdates(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
    return
  }
  client, err := ch.clientRepo.GetByID(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "client not found"})
    return
  }
  updates, err := ch.updateRepo.ListByClientString(c.Request.Context(), nil, client.ClientString())
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"updates": updates})
}

type clientNotificationRequest struct {
  NotificationsEnabled *bool `json:"notifications_enabled" binding:"required"`
}

func (ch *ClientHandler) GetNotificationSettings(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
    return
  }
  settings, err := ch.notifRepo.GetClientSettings(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if settings == nil {
    settings = &types.ClientNotificationSettings{ClientID: id, NotificationsEnabled: true}
  }
  c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (ch *ClientHandler) UpdateNotificationSettings(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
    return
  }
  var req clientNotificationRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  settings := &types.ClientNotificationSettings{
    ClientID:             id,
    NotificationsEnabled: *req.NotificationsEnabled,
  }
  saved, err := ch.notifRepo.UpsertClientSettings(c.Request.Context(), nil, settings)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"settings": saved})
}
