package store

import (
	"context"
	"testing"
	"time"

	"github.com/muflih795/YBG-Database-3/internal/database"
	"github.com/muflih795/YBG-Database-3/internal/model"
)

func setupBackupLog(t *testing.T) *BackupLog {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBackupLog(db)
}

func TestBackupLogLifecycle(t *testing.T) {
	ctx := context.Background()
	bl := setupBackupLog(t)
	now := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)

	b, err := bl.Create(ctx, "backup-1.db.enc", "ybg/backup-1.db.enc", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != model.BackupStatusPending {
		t.Errorf("status = %q, want %q", b.Status, model.BackupStatusPending)
	}

	if err := bl.UpdateStatus(ctx, b.ID, model.BackupStatusFailed, "boom"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := bl.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ErrorMessage != "boom" {
		t.Errorf("error_message = %q, want %q", got.ErrorMessage, "boom")
	}

	if err := bl.UpdateCompleted(ctx, b.ID, 1234, now.Add(time.Minute)); err != nil {
		t.Fatalf("update completed: %v", err)
	}
	latest, err := bl.LatestCompleted(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ID != b.ID || latest.SizeBytes != 1234 {
		t.Fatalf("latest = %+v", latest)
	}
	if latest.ErrorMessage != "" {
		t.Errorf("error_message should clear on completion, got %q", latest.ErrorMessage)
	}

	missing, err := bl.Get(ctx, 999)
	if err != nil || missing != nil {
		t.Errorf("Get(999) = %v, %v; want nil, nil", missing, err)
	}
}

func TestBackupLogDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	bl := setupBackupLog(t)
	now := time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)

	if _, err := bl.Create(ctx, "old.db.enc", "ybg/old.db.enc", now.AddDate(0, 0, -40)); err != nil {
		t.Fatal(err)
	}
	if _, err := bl.Create(ctx, "new.db.enc", "ybg/new.db.enc", now); err != nil {
		t.Fatal(err)
	}

	keys, err := bl.DeleteOlderThan(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(keys) != 1 || keys[0] != "ybg/old.db.enc" {
		t.Errorf("keys = %v, want [ybg/old.db.enc]", keys)
	}

	list, err := bl.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Filename != "new.db.enc" {
		t.Errorf("remaining = %+v", list)
	}
}
