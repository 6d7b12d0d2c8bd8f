package repository

import (
	"context"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/minsulee/noraebot/internal/config"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	cfg := &config.Config{DataDir: t.TempDir()}
	db, err := OpenDB(cfg)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepo(db)
}

func TestSettingsLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	set, err := repo.UpsertSettings(ctx, "g1", 300, 10)
	if err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	if set.SecondsWaitAfterEmpty != 300 {
		t.Errorf("default wait = %d, want 300", set.SecondsWaitAfterEmpty)
	}
	if set.DefaultQueuePageSize != 10 {
		t.Errorf("default page size = %d, want 10", set.DefaultQueuePageSize)
	}
	if set.QAddEphemeral {
		t.Errorf("queue-add ephemeral defaults to true")
	}

	// Upsert again must not reset anything.
	set.SecondsWaitAfterEmpty = 0
	set.QAddEphemeral = true
	if err := repo.UpdateSettings(ctx, set); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	again, err := repo.UpsertSettings(ctx, "g1", 300, 10)
	if err != nil {
		t.Fatalf("second UpsertSettings: %v", err)
	}
	if again.SecondsWaitAfterEmpty != 0 || !again.QAddEphemeral {
		t.Errorf("upsert clobbered stored settings: %+v", again)
	}
}

func TestUpsertSeedsConfiguredDefaults(t *testing.T) {
	repo := newTestRepo(t)
	set, err := repo.UpsertSettings(context.Background(), "g1", 120, 5)
	if err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	if set.SecondsWaitAfterEmpty != 120 || set.DefaultQueuePageSize != 5 {
		t.Errorf("seeded settings = %+v, want wait 120 page size 5", set)
	}
}

func TestSettingsPerGuild(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, _ := repo.UpsertSettings(ctx, "ga", 300, 10)
	if _, err := repo.UpsertSettings(ctx, "gb", 300, 10); err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}

	a.DefaultQueuePageSize = 25
	if err := repo.UpdateSettings(ctx, a); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	b, err := repo.GetSettings(ctx, "gb")
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if b.DefaultQueuePageSize != 10 {
		t.Errorf("guild gb picked up guild ga's page size: %d", b.DefaultQueuePageSize)
	}
}

func TestRecordAndCountDownloads(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.CountDownloads(ctx)
	if err != nil {
		t.Fatalf("CountDownloads: %v", err)
	}
	if n != 0 {
		t.Errorf("initial count = %d, want 0", n)
	}

	for i := 0; i < 3; i++ {
		if err := repo.RecordDownload(ctx, "title", "https://example.com", 1024); err != nil {
			t.Fatalf("RecordDownload: %v", err)
		}
	}
	n, err = repo.CountDownloads(ctx)
	if err != nil {
		t.Fatalf("CountDownloads: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}
