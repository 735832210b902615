package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lugondev/anchorlite/internal/config"
)

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	fileRepo, err := NewFileRepository(filepath.Join(t.TempDir(), "state", "state.yaml"))
	if err != nil {
		t.Fatalf("failed to create file repository: %v", err)
	}
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"file":   fileRepo,
	}
}

func TestSelectionRepository(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := repo.Selections().Load(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound before save, got %v", err)
			}

			if err := repo.Selections().Save(ctx, "unknown-key"); err != nil {
				t.Fatalf("failed to save selection: %v", err)
			}
			if err := repo.Selections().Save(ctx, "solana"); err != nil {
				t.Fatalf("failed to save selection: %v", err)
			}

			key, err := repo.Selections().Load(ctx)
			if err != nil {
				t.Fatalf("failed to load selection: %v", err)
			}
			if key != "solana" {
				t.Errorf("expected solana, got %s", key)
			}
		})
	}
}

func TestAttemptRepository(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			first := NewAttempt("solana", "devnet", "prog", "checkin", "walletA")
			first.CreatedAt = base
			first.Status = AttemptStatusSimulationFailed

			second := NewAttempt("solana", "devnet", "prog", "checkin", "walletA")
			second.CreatedAt = base.Add(time.Minute)
			second.Signature = "sig-2"
			second.Status = AttemptStatusConfirmed

			other := NewAttempt("solana", "devnet", "prog", "checkin", "walletB")
			other.CreatedAt = base.Add(2 * time.Minute)

			for _, a := range []*AttemptModel{first, second, other} {
				if err := repo.Attempts().Save(ctx, a); err != nil {
					t.Fatalf("failed to save attempt: %v", err)
				}
			}

			recent, err := repo.Attempts().FindRecent(ctx, "walletA", 10)
			if err != nil {
				t.Fatalf("failed to find recent: %v", err)
			}
			if len(recent) != 2 {
				t.Fatalf("expected 2 attempts for walletA, got %d", len(recent))
			}
			if recent[0].ID != second.ID {
				t.Errorf("expected newest attempt first, got %s", recent[0].ID)
			}

			all, _ := repo.Attempts().FindRecent(ctx, "", 2)
			if len(all) != 2 || all[0].ID != other.ID {
				t.Errorf("expected limit 2 starting at newest, got %d", len(all))
			}

			found, err := repo.Attempts().FindBySignature(ctx, "sig-2")
			if err != nil {
				t.Fatalf("failed to find by signature: %v", err)
			}
			if found == nil || found.Status != AttemptStatusConfirmed {
				t.Errorf("expected confirmed attempt, got %+v", found)
			}

			missing, err := repo.Attempts().FindBySignature(ctx, "nope")
			if err != nil || missing != nil {
				t.Errorf("expected nil, nil for missing signature, got %v, %v", missing, err)
			}
		})
	}
}

func TestAttemptSaveReplacesByID(t *testing.T) {
	ctx := context.Background()

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			attempt := NewAttempt("solana", "devnet", "prog", "checkin", "walletA")
			attempt.Status = AttemptStatusSimulated
			if err := repo.Attempts().Save(ctx, attempt); err != nil {
				t.Fatalf("failed to save: %v", err)
			}

			attempt.Status = AttemptStatusConfirmed
			attempt.Signature = "sig"
			if err := repo.Attempts().Save(ctx, attempt); err != nil {
				t.Fatalf("failed to save: %v", err)
			}

			recent, _ := repo.Attempts().FindRecent(ctx, "", 0)
			if len(recent) != 1 {
				t.Fatalf("expected 1 attempt, got %d", len(recent))
			}
			if recent[0].Status != AttemptStatusConfirmed {
				t.Errorf("expected updated status, got %s", recent[0].Status)
			}
		})
	}
}

func TestFileRepositoryPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.yaml")

	repo, err := NewFileRepository(path)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	if err := repo.Selections().Save(ctx, "opbnb"); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	reopened, _ := NewFileRepository(path)
	key, err := reopened.Selections().Load(ctx)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if key != "opbnb" {
		t.Errorf("expected opbnb, got %s", key)
	}
}

func TestConnectionManager(t *testing.T) {
	ctx := context.Background()

	if _, err := NewConnectionManager(&config.StorageConfig{}); err == nil {
		t.Error("expected error for empty storage type")
	}

	cm, err := NewConnectionManager(&config.StorageConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if _, err := cm.GetRepository(); err == nil {
		t.Error("expected error before connect")
	}

	repo, err := cm.Connect(ctx)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	again, _ := cm.Connect(ctx)
	if repo != again {
		t.Error("expected Connect to reuse the repository")
	}
	if err := cm.Close(); err != nil {
		t.Errorf("failed to close: %v", err)
	}

	bad, _ := NewConnectionManager(&config.StorageConfig{Type: "mysql"})
	if _, err := bad.Connect(ctx); err == nil {
		t.Error("expected unsupported type error")
	}
}
