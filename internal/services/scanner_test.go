package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chaintrack/chaintrack-backend/internal/clients/gcp"
	"github.com/chaintrack/chaintrack-backend/internal/repos"
	"github.com/chaintrack/chaintrack-backend/internal/repos/testutil"
	"github.com/chaintrack/chaintrack-backend/internal/types"
)

// fakeObjectStore serves a fixed key space with "/" delimiter semantics.
type fakeObjectStore struct {
	bucket   string
	objects  map[string][]byte
	modified time.Time
}

func (f *fakeObjectStore) ListCommonPrefixes(ctx context.Context, prefix string) ([]string, error) {
	seen := map[string]struct{}{}
	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		idx := strings.Index(rest, "/")
		if idx < 0 {
			continue
		}
		seen[prefix+rest[:idx+1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeObjectStore) ListObjects(ctx context.Context, prefix string, limit int) ([]gcp.ObjectInfo, error) {
	out := []gcp.ObjectInfo{}
	for key, data := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, gcp.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: f.modified})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeObjectStore) GetObject(ctx context.Context, key string) ([]byte, time.Time, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, time.Time{}, fmt.Errorf("%w: %s", gcp.ErrObjectNotFound, key)
	}
	return data, f.modified, nil
}

func (f *fakeObjectStore) BucketName() string { return f.bucket }

type scannerFixture struct {
	scanner   *scannerService
	protocols repos.ProtocolRepo
	snapshots repos.SnapshotIndexRepo
	sysCfg    repos.SystemConfigRepo
}

func newScannerFixture(t *testing.T, store *fakeObjectStore, autoScan bool) *scannerFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	testutil.Reset(t, db, "snapshot_index", "protocol_snapshot_prefix", "protocol", "system_config", "storage_config")

	protocolRepo := repos.NewProtocolRepo(db, log)
	snapshotRepo := repos.NewSnapshotIndexRepo(db, log)
	sysCfgRepo := repos.NewSystemConfigRepo(db, log)
	storageCfgRepo := repos.NewStorageConfigRepo(db, log)

	ctx := context.Background()
	if _, err := sysCfgRepo.Upsert(ctx, nil, &types.SystemConfig{
		AppName:               "Protocol Tracker",
		AutoScanEnabled:       autoScan,
		AutoScanIntervalHours: 6,
	}); err != nil {
		t.Fatalf("upsert system config: %v", err)
	}
	if _, err := storageCfgRepo.Upsert(ctx, nil, &types.StorageConfig{BucketName: store.bucket}); err != nil {
		t.Fatalf("upsert storage config: %v", err)
	}

	factory := func(ctx context.Context, cfg *types.StorageConfig) (gcp.ObjectStore, error) {
		return store, nil
	}
	svc := NewScannerService(db, log, protocolRepo, snapshotRepo, sysCfgRepo, storageCfgRepo, factory)

	return &scannerFixture{
		scanner:   svc.(*scannerService),
		protocols: protocolRepo,
		snapshots: snapshotRepo,
		sysCfg:    sysCfgRepo,
	}
}

func axelarManifest() []byte {
	body := map[string]any{
		"chunks": []map[string]any{
			{
				"destinations": []map[string]any{
					{"path": "data/application.db/000001.sst"},
					{"path": "data/application.db/000002.sst"},
				},
			},
			{
				"destinations": []map[string]any{
					{"path": "wasm/cache/code.bin"},
					{"path": "data/application.db/000001.sst"},
				},
			},
		},
	}
	raw, _ := json.Marshal(body)
	return raw
}

func newAxelarStore() *fakeObjectStore {
	return &fakeObjectStore{
		bucket:   "chain-snapshots",
		modified: time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC),
		objects: map[string][]byte{
			"axelar-axelard-mainnet-full-v1/v20250801/manifest-body.json":   axelarManifest(),
			"axelar-axelard-mainnet-full-v1/v20250801/manifest-header.json": []byte(`{"total_size": 123456789, "chunks": 2, "compression": "zstd"}`),
			// Upload still in progress, no manifest yet.
			"axelar-axelard-mainnet-full-v1/v20250715/000001.sst": []byte("raw"),
			// Manifest with no destinations at all.
			"axelar-axelard-mainnet-full-v1/v20250720/manifest-body.json": []byte(`{"chunks": []}`),
		},
	}
}

func TestScanIndexesSnapshots(t *testing.T) {
	store := newAxelarStore()
	fx := newScannerFixture(t, store, true)
	ctx := context.Background()

	protocol, err := fx.protocols.Create(ctx, nil, &types.Protocol{
		ID:             uuid.New(),
		Name:           "Axelar",
		SnapshotPrefix: "axelar-",
	})
	if err != nil {
		t.Fatalf("create protocol: %v", err)
	}

	summary, err := fx.scanner.ScanNow(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if summary.ManifestsChecked != 3 {
		t.Fatalf("ManifestsChecked=%d, want 3", summary.ManifestsChecked)
	}
	if summary.NewSnapshots != 1 {
		t.Fatalf("NewSnapshots=%d, want 1 (incomplete and empty manifests skipped)", summary.NewSnapshots)
	}

	rows, err := fx.snapshots.ListByProtocol(ctx, nil, protocol.ID, 10, 0)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("stored snapshots=%d, want 1", len(rows))
	}
	row := rows[0]
	if row.SnapshotID != "axelar-axelard-mainnet-full-v1/v20250801" {
		t.Fatalf("SnapshotID=%q", row.SnapshotID)
	}
	if row.FileCount != 3 {
		t.Fatalf("FileCount=%d, want 3 after dedupe", row.FileCount)
	}
	if row.TotalSize != 123456789 {
		t.Fatalf("TotalSize=%d, want header total", row.TotalSize)
	}
	if !row.CreatedAt.Equal(store.modified) {
		t.Fatalf("CreatedAt=%s, want object modification time %s", row.CreatedAt, store.modified)
	}

	var metadata map[string]any
	if err := json.Unmarshal(row.SnapshotMetadata, &metadata); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if metadata["client"] != "axelard" || metadata["network"] != "mainnet" || metadata["node_type"] != "full" || metadata["version_tag"] != "v1" {
		t.Fatalf("directory tokens=%v", metadata)
	}
	if metadata["version_num"] != "v20250801" {
		t.Fatalf("version_num=%v", metadata["version_num"])
	}
	if metadata["compression"] != "zstd" {
		t.Fatalf("compression=%v", metadata["compression"])
	}
	tree, ok := metadata["file_tree"].(map[string]any)
	if !ok {
		t.Fatalf("file_tree missing: %v", metadata)
	}
	data, ok := tree["data"].(map[string]any)
	if !ok {
		t.Fatalf("file_tree shape: %v", tree)
	}
	if _, ok := data["application.db"].(map[string]any); !ok {
		t.Fatalf("file_tree nesting: %v", data)
	}
}

func TestScanIsIdempotent(t *testing.T) {
	store := newAxelarStore()
	fx := newScannerFixture(t, store, true)
	ctx := context.Background()

	protocol, err := fx.protocols.Create(ctx, nil, &types.Protocol{
		ID:             uuid.New(),
		Name:           "Axelar",
		SnapshotPrefix: "axelar-",
	})
	if err != nil {
		t.Fatalf("create protocol: %v", err)
	}

	if _, err := fx.scanner.ScanNow(ctx); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	firstRows, err := fx.snapshots.ListByProtocol(ctx, nil, protocol.ID, 10, 0)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(firstRows) != 1 {
		t.Fatalf("stored snapshots=%d, want 1", len(firstRows))
	}

	second, err := fx.scanner.ScanNow(ctx)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.NewSnapshots != 0 {
		t.Fatalf("second scan NewSnapshots=%d, want 0", second.NewSnapshots)
	}
	if second.UpdatedSnapshots != 1 {
		t.Fatalf("second scan UpdatedSnapshots=%d, want 1", second.UpdatedSnapshots)
	}

	secondRows, err := fx.snapshots.ListByProtocol(ctx, nil, protocol.ID, 10, 0)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(secondRows) != 1 {
		t.Fatalf("rescan duplicated rows: %d", len(secondRows))
	}
	if secondRows[0].ID != firstRows[0].ID {
		t.Fatalf("rescan replaced the row instead of updating it")
	}
	if secondRows[0].IndexedAt.Before(firstRows[0].IndexedAt) {
		t.Fatalf("rescan must refresh indexed_at")
	}
}

func TestPrefixFallbackChain(t *testing.T) {
	store := newAxelarStore()
	fx := newScannerFixture(t, store, true)
	ctx := context.Background()

	protocol, err := fx.protocols.Create(ctx, nil, &types.Protocol{
		ID:             uuid.New(),
		Name:           "Axelar Mainnet",
		SnapshotPrefix: "legacy-prefix-",
	})
	if err != nil {
		t.Fatalf("create protocol: %v", err)
	}

	// Active prefix rows take precedence over everything else.
	if _, err := fx.protocols.CreatePrefix(ctx, nil, &types.ProtocolSnapshotPrefix{
		ID:         uuid.New(),
		ProtocolID: protocol.ID,
		Prefix:     "axelar-",
		IsActive:   true,
	}); err != nil {
		t.Fatalf("create prefix: %v", err)
	}
	got, err := fx.scanner.prefixesToScan(ctx, protocol)
	if err != nil {
		t.Fatalf("prefixesToScan: %v", err)
	}
	if len(got) != 1 || got[0] != "axelar-" {
		t.Fatalf("with active rows got %v, want [axelar-]", got)
	}

	// Without rows the legacy column applies.
	noRows, err := fx.protocols.Create(ctx, nil, &types.Protocol{
		ID:             uuid.New(),
		Name:           "Osmosis",
		SnapshotPrefix: "osmosis-legacy-",
	})
	if err != nil {
		t.Fatalf("create protocol: %v", err)
	}
	got, err = fx.scanner.prefixesToScan(ctx, noRows)
	if err != nil {
		t.Fatalf("prefixesToScan: %v", err)
	}
	if len(got) != 1 || got[0] != "osmosis-legacy-" {
		t.Fatalf("with legacy column got %v, want [osmosis-legacy-]", got)
	}

	// Bare protocols fall back to a prefix derived from the name.
	bare, err := fx.protocols.Create(ctx, nil, &types.Protocol{
		ID:   uuid.New(),
		Name: "Cosmos Hub",
	})
	if err != nil {
		t.Fatalf("create protocol: %v", err)
	}
	got, err = fx.scanner.prefixesToScan(ctx, bare)
	if err != nil {
		t.Fatalf("prefixesToScan: %v", err)
	}
	if len(got) != 1 || got[0] != "cosmos-hub-" {
		t.Fatalf("derived prefix got %v, want [cosmos-hub-]", got)
	}
}

func TestScannerStartRequiresConfiguration(t *testing.T) {
	store := newAxelarStore()
	fx := newScannerFixture(t, store, false)
	ctx := context.Background()

	if res := fx.scanner.Start(ctx); res.Status != ControlError {
		t.Fatalf("start with auto scan disabled: %q, want %q", res.Status, ControlError)
	}

	if _, err := fx.sysCfg.Upsert(ctx, nil, &types.SystemConfig{
		AppName:               "Protocol Tracker",
		AutoScanEnabled:       true,
		AutoScanIntervalHours: 6,
	}); err != nil {
		t.Fatalf("enable auto scan: %v", err)
	}

	if res := fx.scanner.Start(ctx); res.Status != ControlStarted {
		t.Fatalf("start: %q, want %q", res.Status, ControlStarted)
	}
	if res := fx.scanner.Start(ctx); res.Status != ControlAlreadyRunning {
		t.Fatalf("second start: %q, want %q", res.Status, ControlAlreadyRunning)
	}
	if res := fx.scanner.Stop(ctx); res.Status != ControlStopped {
		t.Fatalf("stop: %q, want %q", res.Status, ControlStopped)
	}
	if res := fx.scanner.Stop(ctx); res.Status != ControlAlreadyStopped {
		t.Fatalf("second stop: %q, want %q", res.Status, ControlAlreadyStopped)
	}
}

func TestBuildFileTree(t *testing.T) {
	tree := buildFileTree([]string{
		"data/application.db/000001.sst",
		"data/application.db/000002.sst",
		"data/snapshots/metadata",
		"wasm/cache/code.bin",
		"genesis.json",
	})

	if _, ok := tree["genesis.json"]; !ok {
		t.Fatalf("top level file missing: %v", tree)
	}
	if tree["genesis.json"] != nil {
		t.Fatalf("files must map to nil, got %v", tree["genesis.json"])
	}
	data, ok := tree["data"].(map[string]any)
	if !ok {
		t.Fatalf("data directory missing: %v", tree)
	}
	appDB, ok := data["application.db"].(map[string]any)
	if !ok {
		t.Fatalf("nested directory missing: %v", data)
	}
	if len(appDB) != 2 {
		t.Fatalf("application.db entries=%d, want 2", len(appDB))
	}
}

func TestParseDirectoryTokens(t *testing.T) {
	cases := []struct {
		name       string
		dir        string
		client     string
		network    string
		nodeType   string
		versionTag string
	}{
		{
			name:       "full_form",
			dir:        "axelar-axelard-mainnet-full-v1/",
			client:     "axelard",
			network:    "mainnet",
			nodeType:   "full",
			versionTag: "v1",
		},
		{
			name:       "missing_version_tag",
			dir:        "axelar-axelard-mainnet-full/",
			client:     "axelard",
			network:    "mainnet",
			nodeType:   "full",
			versionTag: "v1",
		},
		{
			name:       "only_protocol",
			dir:        "axelar/",
			client:     "unknown",
			network:    "unknown",
			nodeType:   "unknown",
			versionTag: "v1",
		},
		{
			name:       "two_tokens",
			dir:        "osmosis-osmosisd/",
			client:     "osmosisd",
			network:    "unknown",
			nodeType:   "unknown",
			versionTag: "v1",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, network, nodeType, versionTag := parseDirectoryTokens(tc.dir)
			if client != tc.client || network != tc.network || nodeType != tc.nodeType || versionTag != tc.versionTag {
				t.Fatalf("parseDirectoryTokens(%q)=(%s,%s,%s,%s), want (%s,%s,%s,%s)",
					tc.dir, client, network, nodeType, versionTag,
					tc.client, tc.network, tc.nodeType, tc.versionTag)
			}
		})
	}
}

func TestDedupeSorted(t *testing.T) {
	got := dedupeSorted([]string{"b", "a", "b", "c", "a"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLastPathElement(t *testing.T) {
	cases := map[string]string{
		"axelar-axelard-mainnet-full-v1/v20250801/": "v20250801",
		"v20250801/": "v20250801",
		"v20250801":  "v20250801",
	}
	for in, want := range cases {
		if got := lastPathElement(in); got != want {
			t.Fatalf("lastPathElement(%q)=%q, want %q", in, got, want)
		}
	}
}
