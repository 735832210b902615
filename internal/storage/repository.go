package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by SelectionRepository.Load when nothing was saved yet.
var ErrNotFound = errors.New("storage: not found")

// SelectionRepository persists the single active chain key.
type SelectionRepository interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, key string) error
}

// AttemptRepository records transaction flow attempts.
type AttemptRepository interface {
	Save(ctx context.Context, attempt *AttemptModel) error
	// FindBySignature returns nil, nil when no attempt carries the signature.
	FindBySignature(ctx context.Context, signature string) (*AttemptModel, error)
	// FindRecent returns attempts newest first. An empty wallet matches all.
	FindRecent(ctx context.Context, wallet string, limit int) ([]*AttemptModel, error)
}

type Repository interface {
	Selections() SelectionRepository
	Attempts() AttemptRepository
	Close() error
	Ping(ctx context.Context) error
}
