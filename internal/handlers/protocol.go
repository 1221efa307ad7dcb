package handlers

import (
  "net/http"
  "net/url"
  "strconv"
  "strings"
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/services"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

type ProtocolHandler struct {
  protocolRepo repos.ProtocolRepo
  snapshotRepo repos.SnapshotIndexRepo
  scanner      services.ScannerService
}

func NewProtocolHandler(protocolRepo repos.ProtocolRepo, snapshotRepo repos.SnapshotIndexRepo, scanner services.ScannerService) *ProtocolHandler {
  return &ProtocolHandler{protocolRepo: protocolRepo, snapshotRepo: snapshotRepo, scanner: scanner}
}

type protocolRequest struct {
  Name           string `json:"name"`
  ChainID        string `json:"chain_id"`
  Network        string `json:"network"`
  Explorer       string `json:"explorer"`
  PublicRPC      string `json:"public_rpc"`
  ProtoFamily    string `json:"proto_family"`
  SnapshotPrefix string `json:"snapshot_prefix"`
}

func (ph *ProtocolHandler) Create(c *gin.Context) {
  var req protocolRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  if req.Name == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
    return
  }
  protocol := &types.Protocol{
    ID:             uuid.New(),
    Name:           req.Name,
    ChainID:        req.ChainID,
    Network:        req.Network,
    Explorer:       req.Explorer,
    PublicRPC:      req.PublicRPC,
    ProtoFamily:    req.ProtoFamily,
    SnapshotPrefix: req.SnapshotPrefix,
  }
  created, err := ph.protocolRepo.Create(c.Request.Context(), nil, protocol)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusCreated, gin.H{"protocol": created})
}

func (ph *ProtocolHandler) List(c *gin.Context) {
  protocols, err := ph.protocolRepo.List(c.Request.Context(), nil)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"protocols": protocols})
}

// Get resolves the path parameter as a UUID first and falls back to the
// protocol name, so callers can use either form of identifier.
func (ph *ProtocolHandler) Get(c *gin.Context) {
  param := c.Param("id")
  var protocol *types.Protocol
  var err error
  if id, parseErr := uuid.Parse(param); parseErr == nil {
    protocol, err = ph.protocolRepo.GetByID(c.Request.Context(), nil, id)
  } else {
    protocol, err = ph.protocolRepo.GetByName(c.Request.Context(), nil, param)
  }
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "protocol not found"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"protocol": protocol})
}

func (ph *ProtocolHandler) Update(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
    return
  }
  protocol, err := ph.protocolRepo.GetByID(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "protocol not found"})
    return
  }
  var req protocolRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  if req.Name != "" {
    protocol.Name = req.Name
  }
  if req.ChainID != "" {
    protocol.ChainID = req.ChainID
  }
  if req.Network != "" {
    protocol.Network = req.Network
  }
  if req.Explorer != "" {
    protocol.Explorer = req.Explorer
  }
  if req.PublicRPC != "" {
    protocol.PublicRPC = req.PublicRPC
  }
  if req.ProtoFamily != "" {
    protocol.ProtoFamily = req.ProtoFamily
  }
  if req.SnapshotPrefix != "" {
    protocol.SnapshotPrefix = req.SnapshotPrefix
  }
  updated, err := ph.protocolRepo.Update(c.Request.Context(), nil, protocol)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"protocol": updated})
}

func (ph *ProtocolHandler) Delete(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
    return
  }
  if err := ph.protocolRepo.Delete(c.Request.Context(), nil, id); err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (ph *ProtocolHandler) ListClients(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
    return
  }
  clients, err := ph.protocolRepo.ListClients(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"clients": clients})
}

func (ph *ProtocolHandler) AddClient(c *gin.Context) {
  protocolID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
    return
  }
  clientID, err := uuid.Parse(c.Param("clientId"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
    return
  }
  if err := ph.protocolRepo.AddClient(c.Request.Context(), nil, protocolID, clientID); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "linked"})
}

func (ph *ProtocolHandler) RemoveClient(c *gin.Context) {
  protocolID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
    return
  }
  clientID, err := uuid.Parse(c.Param("clientId"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid client id"})
    return
  }
  if err := ph.protocolRepo.RemoveClient(c.Request.Context(), nil, protocolID, clientID); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "unlinked"})
}

func (ph *ProtocolHandler) ListPrefixes(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
    return
  }
  prefixes, err := ph.protocolRepo.ListActivePrefixes(c.Request.Context(), nil, id)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"prefixes": prefixes})
}

type prefixRequest struct {
  Prefix string `json:"prefix" binding:"required"`
}

func (ph *ProtocolHandler) CreatePrefix(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
    return
  }
  var req prefixRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  prefix := &types.ProtocolSnapshotPrefix{
    ID:         uuid.New(),
    ProtocolID: id,
    Prefix:     req.Prefix,
    IsActive:   true,
  }
  created, err := ph.protocolRepo.CreatePrefix(c.Request.Context(), nil, prefix)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusCreated, gin.H{"prefix": created})
}

func (ph *ProtocolHandler) DeletePrefix(c *gin.Context) {
  prefixID, err := uuid.Parse(c.Param("prefixId"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid prefix id"})
    return
  }
  if err := ph.protocolRepo.DeletePrefix(c.Request.Context(), nil, prefixID); err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (ph *ProtocolHandler) ListSnapshots(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
    return
  }
  limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
  offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
  snapshots, err := ph.snapshotRepo.ListByProtocol(c.Request.Context(), nil, id, limit, offset)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

// ScanSnapshots runs a one-shot bucket scan for this protocol.
func (ph *ProtocolHandler) ScanSnapshots(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
    return
  }
  summary, err := ph.scanner.ScanProtocol(c.Request.Context(), id)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"result": summary})
}

// GetSnapshotFiles returns the stored file tree for one snapshot. The
// snapshot id contains slashes, so it arrives URL encoded.
func (ph *ProtocolHandler) GetSnapshotFiles(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid protocol id"})
    return
  }
  snapshotID := strings.TrimPrefix(c.Param("snapshotId"), "/")
  if decoded, err := url.PathUnescape(snapshotID); err == nil {
    snapshotID = decoded
  }
  snapshot, err := ph.snapshotRepo.GetBySnapshotID(c.Request.Context(), nil, id, snapshotID)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  if snapshot == nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
    return
  }
  c.JSON(http.StatusOK, gin.H{
    "snapshot_id": snapshot.SnapshotID,
    "file_count":  snapshot.FileCount,
    "total_size":  snapshot.TotalSize,
    "metadata":    snapshot.SnapshotMetadata,
  })
}
