package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "sort"
  "strings"
  "sync"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/chaintrack/chaintrack-backend/internal/clients/gcp"
  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/types"
)

// ScanSummary reports one snapshot discovery cycle.
type ScanSummary struct {
  ProtocolsScanned  int       `json:"protocols_scanned"`
  DirectoriesSeen   int       `json:"directories_seen"`
  ManifestsChecked  int       `json:"manifests_checked"`
  NewSnapshots      int       `json:"new_snapshots"`
  UpdatedSnapshots  int       `json:"updated_snapshots"`
  Errors            []string  `json:"errors,omitempty"`
  StartedAt         time.Time `json:"started_at"`
  DurationMS        int64     `json:"duration_ms"`
}

type ScannerStatus struct {
  IsRunning             bool `json:"is_running"`
  AutoScanEnabled       bool `json:"auto_scan_enabled"`
  AutoScanIntervalHours int  `json:"auto_scan_interval_hours"`
}

type ScannerService interface {
  Start(ctx context.Context) ControlResult
  Stop(ctx context.Context) ControlResult
  Status(ctx context.Context) (*ScannerStatus, error)
  ScanNow(ctx context.Context) (*ScanSummary, error)
  ScanProtocol(ctx context.Context, protocolID uuid.UUID) (*ScanSummary, error)
}

// ObjectStoreFactory opens the snapshot bucket for the storage config
// currently persisted. Tests substitute an in-memory store.
type ObjectStoreFactory func(ctx context.Context, cfg *types.StorageConfig) (gcp.ObjectStore, error)

const scanErrorBackoff = 5 * time.Minute

type scannerService struct {
  db           *gorm.DB
  log          *logger.Logger
  protocols    repos.ProtocolRepo
  snapshots    repos.SnapshotIndexRepo
  sysCfg       repos.SystemConfigRepo
  storageCfg   repos.StorageConfigRepo
  storeFactory ObjectStoreFactory

  mu      sync.Mutex
  running bool
  cancel  context.CancelFunc
  done    chan struct{}
}

func NewScannerService(
  db *gorm.DB,
  baseLog *logger.Logger,
  protocolRepo repos.ProtocolRepo,
  snapshotRepo repos.SnapshotIndexRepo,
  sysCfgRepo repos.SystemConfigRepo,
  storageCfgRepo repos.StorageConfigRepo,
  storeFactory ObjectStoreFactory,
) ScannerService {
  return &scannerService{
    db:           db,
    log:          baseLog.With("service", "ScannerService"),
    protocols:    protocolRepo,
    snapshots:    snapshotRepo,
    sysCfg:       sysCfgRepo,
    storageCfg:   storageCfgRepo,
    storeFactory: storeFactory,
  }
}

func (ss *scannerService) Start(ctx context.Context) ControlResult {
  ss.mu.Lock()
  defer ss.mu.Unlock()

  if ss.running {
    return ControlResult{Status: ControlAlreadyRunning, Message: "scanner is already running"}
  }

  sysCfg, err := ss.sysCfg.Get(ctx, nil)
  if err != nil {
    return ControlResult{Status: ControlError, Message: fmt.Sprintf("load system config: %v", err)}
  }
  if sysCfg == nil || !sysCfg.AutoScanEnabled {
    return ControlResult{Status: ControlError, Message: "auto scanning is not enabled in system settings"}
  }

  storageCfg, err := ss.storageCfg.Get(ctx, nil)
  if err != nil {
    return ControlResult{Status: ControlError, Message: fmt.Sprintf("load storage config: %v", err)}
  }
  if storageCfg == nil || strings.TrimSpace(storageCfg.BucketName) == "" {
    return ControlResult{Status: ControlError, Message: "storage configuration not found"}
  }

  loopCtx, cancel := context.WithCancel(context.Background())
  ss.cancel = cancel
  ss.done = make(chan struct{})
  ss.running = true

  go ss.runLoop(loopCtx, ss.done)

  ss.log.Info("Background snapshot scanner started")
  return ControlResult{Status: ControlStarted, Message: "background snapshot scanner started"}
}

func (ss *scannerService) Stop(ctx context.Context) ControlResult {
  ss.mu.Lock()
  if !ss.running {
    ss.mu.Unlock()
    return ControlResult{Status: ControlAlreadyStopped, Message: "scanner is not running"}
  }
  cancel := ss.cancel
  done := ss.done
  ss.running = false
  ss.cancel = nil
  ss.done = nil
  ss.mu.Unlock()

  cancel()
  <-done

  ss.log.Info("Background snapshot scanner stopped")
  return ControlResult{Status: ControlStopped, Message: "background snapshot scanner stopped"}
}

func (ss *scannerService) Status(ctx context.Context) (*ScannerStatus, error) {
  ss.mu.Lock()
  running := ss.running
  ss.mu.Unlock()

  status := &ScannerStatus{IsRunning: running, AutoScanIntervalHours: 6}

  sysCfg, err := ss.sysCfg.Get(ctx, nil)
  if err != nil {
    return nil, err
  }
  if sysCfg != nil {
    status.AutoScanEnabled = sysCfg.AutoScanEnabled
    if sysCfg.AutoScanIntervalHours > 0 {
      status.AutoScanIntervalHours = sysCfg.AutoScanIntervalHours
    }
  }
  return status, nil
}

func (ss *scannerService) ScanNow(ctx context.Context) (*ScanSummary, error) {
  return ss.runSingleScan(ctx, nil)
}

func (ss *scannerService) ScanProtocol(ctx context.Context, protocolID uuid.UUID) (*ScanSummary, error) {
  protocol, err := ss.protocols.GetByID(ctx, nil, protocolID)
  if err != nil {
    return nil, err
  }
  return ss.runSingleScan(ctx, []*types.Protocol{protocol})
}

func (ss *scannerService) runLoop(ctx context.Context, done chan struct{}) {
  defer close(done)

  for {
    if ctx.Err() != nil {
      return
    }

    sysCfg, err := ss.sysCfg.Get(ctx, nil)
    if err != nil {
      ss.log.Error("Scan loop failed to load config", "error", err.Error())
      if !ss.sleep(ctx, scanErrorBackoff) {
        return
      }
      continue
    }
    if sysCfg == nil || !sysCfg.AutoScanEnabled {
      ss.log.Info("Auto scanning disabled in system settings; loop exiting")
      ss.mu.Lock()
      ss.running = false
      ss.cancel = nil
      ss.done = nil
      ss.mu.Unlock()
      return
    }

    if _, err := ss.runSingleScan(ctx, nil); err != nil {
      ss.log.Error("Scan cycle failed", "error", err.Error())
      if !ss.sleep(ctx, scanErrorBackoff) {
        return
      }
      continue
    }

    interval := time.Duration(sysCfg.AutoScanIntervalHours) * time.Hour
    if interval <= 0 {
      interval = 6 * time.Hour
    }
    if !ss.sleep(ctx, interval) {
      return
    }
  }
}

func (ss *scannerService) sleep(ctx context.Context, d time.Duration) bool {
  timer := time.NewTimer(d)
  defer timer.Stop()
  select {
  case <-ctx.Done():
    return false
  case <-timer.C:
    return true
  }
}

// runSingleScan walks each protocol's bucket prefixes. A nil protocol
// slice means scan everything.
func (ss *scannerService) runSingleScan(ctx context.Context, only []*types.Protocol) (*ScanSummary, error) {
  started := time.Now()
  summary := &ScanSummary{StartedAt: started.UTC()}

  storageCfg, err := ss.storageCfg.Get(ctx, nil)
  if err != nil {
    return nil, err
  }
  if storageCfg == nil || strings.TrimSpace(storageCfg.BucketName) == "" {
    return nil, fmt.Errorf("storage configuration not found")
  }
  store, err := ss.storeFactory(ctx, storageCfg)
  if err != nil {
    return nil, err
  }

  protocols := only
  if protocols == nil {
    protocols, err = ss.protocols.List(ctx, nil)
    if err != nil {
      return nil, err
    }
  }

  for _, protocol := range protocols {
    if protocol == nil {
      continue
    }
    summary.ProtocolsScanned++
    if err := ss.scanProtocolSnapshots(ctx, store, protocol, summary); err != nil {
      // A bad prefix or bucket hiccup on one protocol must not stop
      // the others.
      ss.log.Warn("Protocol scan failed", "protocol", protocol.Name, "error", err.Error())
      summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", protocol.Name, err))
    }
  }

  summary.DurationMS = time.Since(started).Milliseconds()
  ss.log.Info("Scan cycle complete",
    "protocols_scanned", summary.ProtocolsScanned,
    "manifests_checked", summary.ManifestsChecked,
    "new_snapshots", summary.NewSnapshots,
    "updated_snapshots", summary.UpdatedSnapshots,
    "errors", len(summary.Errors),
    "duration_ms", summary.DurationMS,
  )
  return summary, nil
}

// prefixesToScan resolves the prefix fallback chain: active prefix rows,
// then the legacy single column, then a prefix derived from the name.
func (ss *scannerService) prefixesToScan(ctx context.Context, protocol *types.Protocol) ([]string, error) {
  rows, err := ss.protocols.ListActivePrefixes(ctx, nil, protocol.ID)
  if err != nil {
    return nil, err
  }
  if len(rows) > 0 {
    out := make([]string, 0, len(rows))
    for _, row := range rows {
      out = append(out, row.Prefix)
    }
    return out, nil
  }
  if strings.TrimSpace(protocol.SnapshotPrefix) != "" {
    return []string{protocol.SnapshotPrefix}, nil
  }
  return []string{protocol.DefaultScanPrefix()}, nil
}

type manifestBody struct {
  Chunks []struct {
    Destinations []struct {
      Path string `json:"path"`
    } `json:"destinations"`
  } `json:"chunks"`
}

type manifestHeader struct {
  TotalSize   int64  `json:"total_size"`
  Chunks      int    `json:"chunks"`
  Compression string `json:"compression"`
}

func (ss *scannerService) scanProtocolSnapshots(ctx context.Context, store gcp.ObjectStore, protocol *types.Protocol, summary *ScanSummary) error {
  prefixes, err := ss.prefixesToScan(ctx, protocol)
  if err != nil {
    return err
  }

  for _, prefix := range prefixes {
    protocolDirs, err := store.ListCommonPrefixes(ctx, prefix)
    if err != nil {
      return fmt.Errorf("list prefix %q: %w", prefix, err)
    }

    for _, protocolDir := range protocolDirs {
      summary.DirectoriesSeen++

      versionDirs, err := store.ListCommonPrefixes(ctx, protocolDir)
      if err != nil {
        ss.log.Warn("Failed to list version directories",
          "protocol", protocol.Name,
          "directory", protocolDir,
          "error", err.Error(),
        )
        continue
      }

      for _, versionDir := range versionDirs {
        summary.ManifestsChecked++
        if err := ss.indexSnapshot(ctx, store, protocol, protocolDir, versionDir, summary); err != nil {
          ss.log.Warn("Failed to index snapshot",
            "protocol", protocol.Name,
            "directory", versionDir,
            "error", err.Error(),
          )
        }
      }
    }
  }
  return nil
}

func (ss *scannerService) indexSnapshot(ctx context.Context, store gcp.ObjectStore, protocol *types.Protocol, protocolDir, versionDir string, summary *ScanSummary) error {
  manifestPath := versionDir + "manifest-body.json"

  data, lastModified, err := store.GetObject(ctx, manifestPath)
  if err != nil {
    // Most directories are not complete snapshots yet.
    if isNotFound(err) {
      return nil
    }
    return err
  }

  var body manifestBody
  if err := json.Unmarshal(data, &body); err != nil {
    return fmt.Errorf("invalid manifest JSON at %s: %w", manifestPath, err)
  }

  rawPaths := []string{}
  for _, chunk := range body.Chunks {
    for _, dest := range chunk.Destinations {
      if dest.Path != "" {
        rawPaths = append(rawPaths, dest.Path)
      }
    }
  }
  paths := dedupeSorted(rawPaths)
  if len(paths) == 0 {
    return nil
  }

  fileTree := buildFileTree(paths)

  // The header manifest is optional and carries aggregate sizing the
  // body omits.
  var header *manifestHeader
  if headerData, _, err := store.GetObject(ctx, versionDir+"manifest-header.json"); err == nil {
    var h manifestHeader
    if err := json.Unmarshal(headerData, &h); err == nil {
      header = &h
    }
  }

  clientName, network, nodeType, versionTag := parseDirectoryTokens(protocolDir)
  versionNum := lastPathElement(versionDir)
  snapshotKey := protocolDir + versionNum

  metadata := map[string]any{
    "version_num":   versionNum,
    "manifest_path": manifestPath,
    "total_parts":   len(body.Chunks),
    "paths":         paths,
    "file_tree":     fileTree,
    "client":        clientName,
    "network":       network,
    "node_type":     nodeType,
    "version_tag":   versionTag,
  }
  totalSize := int64(0)
  if header != nil {
    totalSize = header.TotalSize
    metadata["compression"] = header.Compression
    metadata["chunk_count"] = header.Chunks
  }
  metadataJSON, err := json.Marshal(metadata)
  if err != nil {
    return err
  }

  existing, err := ss.snapshots.GetBySnapshotID(ctx, nil, protocol.ID, snapshotKey)
  if err != nil {
    return err
  }

  now := time.Now().UTC()
  if existing != nil {
    existing.FileCount = len(paths)
    if totalSize > 0 {
      existing.TotalSize = totalSize
    }
    existing.IndexFilePath = manifestPath
    existing.SnapshotMetadata = datatypes.JSON(metadataJSON)
    existing.IndexedAt = now
    if _, err := ss.snapshots.Update(ctx, nil, existing); err != nil {
      return err
    }
    summary.UpdatedSnapshots++
    return nil
  }

  snapshot := &types.SnapshotIndex{
    ID:               uuid.New(),
    ProtocolID:       protocol.ID,
    SnapshotID:       snapshotKey,
    IndexFilePath:    manifestPath,
    FileCount:        len(paths),
    TotalSize:        totalSize,
    CreatedAt:        lastModified,
    IndexedAt:        now,
    SnapshotMetadata: datatypes.JSON(metadataJSON),
  }
  if _, err := ss.snapshots.Create(ctx, nil, snapshot); err != nil {
    // A concurrent scan can index the same snapshot first; the unique
    // index on (protocol_id, snapshot_id) fails the loser.
    if errors.Is(err, gorm.ErrDuplicatedKey) {
      return nil
    }
    return err
  }
  summary.NewSnapshots++
  ss.log.Info("Indexed new snapshot",
    "protocol", protocol.Name,
    "snapshot_id", snapshotKey,
    "file_count", len(paths),
  )
  return nil
}

func isNotFound(err error) bool {
  return errors.Is(err, gcp.ErrObjectNotFound)
}

func dedupeSorted(paths []string) []string {
  seen := map[string]struct{}{}
  out := make([]string, 0, len(paths))
  for _, p := range paths {
    if _, ok := seen[p]; ok {
      continue
    }
    seen[p] = struct{}{}
    out = append(out, p)
  }
  sort.Strings(out)
  return out
}

// buildFileTree nests paths into a directory tree. Files map to nil,
// directories to nested maps.
func buildFileTree(paths []string) map[string]any {
  tree := map[string]any{}
  for _, path := range paths {
    parts := strings.Split(path, "/")
    current := tree
    for i, part := range parts {
      if i == len(parts)-1 {
        current[part] = nil
        continue
      }
      next, ok := current[part].(map[string]any)
      if !ok {
        next = map[string]any{}
        current[part] = next
      }
      current = next
    }
  }
  return tree
}

// parseDirectoryTokens splits a directory name shaped like
// "ethereum-geth-mainnet-full-v1/" into its metadata tokens. Missing
// positions fall back to "unknown" (or "v1" for the version tag).
func parseDirectoryTokens(protocolDir string) (client, network, nodeType, versionTag string) {
  client, network, nodeType, versionTag = "unknown", "unknown", "unknown", "v1"
  parts := strings.Split(strings.TrimRight(protocolDir, "/"), "-")
  if len(parts) > 1 {
    client = parts[1]
  }
  if len(parts) > 2 {
    network = parts[2]
  }
  if len(parts) > 3 {
    nodeType = parts[3]
  }
  if len(parts) > 4 {
    versionTag = parts[4]
  }
  return client, network, nodeType, versionTag
}

func lastPathElement(dir string) string {
  trimmed := strings.TrimRight(dir, "/")
  if i := strings.LastIndex(trimmed, "/"); i >= 0 {
    return trimmed[i+1:]
  }
  return trimmed
}
