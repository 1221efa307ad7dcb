package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  "github.com/chaintrack/chaintrack-backend/internal/services"
)

// AdminHandler exposes the poller and scanner lifecycle controls.
type AdminHandler struct {
  poller  services.PollerService
  scanner services.ScannerService
}

func NewAdminHandler(poller services.PollerService, scanner services.ScannerService) *AdminHandler {
  return &AdminHandler{poller: poller, scanner: scanner}
}

func controlStatusCode(result services.ControlResult) int {
  if result.Status == services.ControlError {
    return http.StatusBadRequest
  }
  return http.StatusOK
}

func (ah *AdminHandler) StartPoller(c *gin.Context) {
  result := ah.poller.Start(c.Request.Context())
  c.JSON(controlStatusCode(result), result)
}

func (ah *AdminHandler) StopPoller(c *gin.Context) {
  result := ah.poller.Stop(c.Request.Context())
  c.JSON(controlStatusCode(result), result)
}

func (ah *AdminHandler) PollerStatus(c *gin.Context) {
  status, err := ah.poller.Status(c.Request.Context())
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, status)
}

func (ah *AdminHandler) PollNow(c *gin.Context) {
  summary, err := ah.poller.PollNow(c.Request.Context())
  if err != nil {
    if errors.Is(err, services.ErrGitHubKeyNotConfigured) {
      c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
      return
    }
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "completed", "result": summary})
}

func (ah *AdminHandler) StartScanner(c *gin.Context) {
  result := ah.scanner.Start(c.Request.Context())
  c.JSON(controlStatusCode(result), result)
}

func (ah *AdminHandler) StopScanner(c *gin.Context) {
  result := ah.scanner.Stop(c.Request.Context())
  c.JSON(controlStatusCode(result), result)
}

func (ah *AdminHandler) ScannerStatus(c *gin.Context) {
  status, err := ah.scanner.Status(c.Request.Context())
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, status)
}

func (ah *AdminHandler) ScanNow(c *gin.Context) {
  summary, err := ah.scanner.ScanNow(c.Request.Context())
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"status": "completed", "result": summary})
}
