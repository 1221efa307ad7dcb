package repos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chaintrack/chaintrack-backend/internal/repos/testutil"
	"github.com/chaintrack/chaintrack-backend/internal/types"
)

func TestProtocolUpdateUniqueness(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	repo := NewProtocolUpdateRepo(db, log)
	ctx := context.Background()

	update := &types.ProtocolUpdate{
		ID:     uuid.New(),
		Name:   "Geth",
		Client: "geth",
		Tag:    "v1.14.0",
		Date:   time.Now().UTC(),
	}
	if _, err := repo.Create(ctx, tx, update); err != nil {
		t.Fatalf("create: %v", err)
	}

	exists, err := repo.ExistsByClientAndTag(ctx, tx, "geth", "v1.14.0")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatalf("expected existing (client, tag) pair")
	}

	exists, err = repo.ExistsByClientAndTag(ctx, tx, "geth", "v9.9.9")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatalf("unexpected (client, tag) pair")
	}

	// The unique index backs the exists-then-create race.
	dup := &types.ProtocolUpdate{
		ID:     uuid.New(),
		Name:   "Geth",
		Client: "geth",
		Tag:    "v1.14.0",
		Date:   time.Now().UTC(),
	}
	_, err = repo.Create(ctx, tx, dup)
	if err == nil {
		t.Fatalf("duplicate (client, tag) insert must fail")
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate insert error = %v, want gorm.ErrDuplicatedKey", err)
	}
}

func TestGetByClientAndTagNotFound(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	repo := NewProtocolUpdateRepo(db, log)

	got, err := repo.GetByClientAndTag(context.Background(), tx, "nonexistent", "v0.0.0")
	if err != nil {
		t.Fatalf("GetByClientAndTag: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing row, got %+v", got)
	}
}

func TestApplyAIAnalysis(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	repo := NewProtocolUpdateRepo(db, log)
	ctx := context.Background()

	update := &types.ProtocolUpdate{
		ID:     uuid.New(),
		Name:   "Lighthouse",
		Client: "lighthouse",
		Tag:    "v5.1.0",
		Date:   time.Now().UTC(),
	}
	if _, err := repo.Create(ctx, tx, update); err != nil {
		t.Fatalf("create: %v", err)
	}

	confidence := 0.87
	err := repo.ApplyAIAnalysis(ctx, tx, update.ID, map[string]interface{}{
		"ai_summary":          "Routine maintenance release.",
		"ai_upgrade_priority": "low",
		"ai_confidence_score": confidence,
		"ai_provider":         "openai",
	})
	if err != nil {
		t.Fatalf("apply analysis: %v", err)
	}

	stored, err := repo.GetByID(ctx, tx, update.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.AISummary != "Routine maintenance release." {
		t.Fatalf("AISummary=%q", stored.AISummary)
	}
	if !stored.HasAIAnalysis() {
		t.Fatalf("HasAIAnalysis should report true")
	}
	if stored.AIConfidenceScore == nil || *stored.AIConfidenceScore != confidence {
		t.Fatalf("AIConfidenceScore=%v", stored.AIConfidenceScore)
	}
	if stored.AIAnalysisDate == nil {
		t.Fatalf("analysis date must be stamped")
	}
}

func TestListByClientStringOrdersByDate(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	tx := testutil.Tx(t, db)
	repo := NewProtocolUpdateRepo(db, log)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, tag := range []string{"v1.0.0", "v1.1.0", "v1.2.0"} {
		update := &types.ProtocolUpdate{
			ID:     uuid.New(),
			Name:   "Reth",
			Client: "reth",
			Tag:    tag,
			Date:   base.Add(time.Duration(i) * time.Hour),
		}
		if _, err := repo.Create(ctx, tx, update); err != nil {
			t.Fatalf("create %s: %v", tag, err)
		}
	}

	rows, err := repo.ListByClientString(ctx, tx, "reth")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d, want 3", len(rows))
	}
	if rows[0].Tag != "v1.2.0" {
		t.Fatalf("newest first expected, got %s", rows[0].Tag)
	}
}
