package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/lugondev/anchorlite/internal/config"
)

type BackendType string

const (
	BackendFile     BackendType = "file"
	BackendMemory   BackendType = "memory"
	BackendRedis    BackendType = "redis"
	BackendPostgres BackendType = "postgres"
	BackendMongoDB  BackendType = "mongodb"
)

type ConnectionManager struct {
	config     *config.StorageConfig
	mu         sync.Mutex
	repository Repository
}

func NewConnectionManager(cfg *config.StorageConfig) (*ConnectionManager, error) {
	if cfg == nil || cfg.Type == "" {
		return nil, fmt.Errorf("storage type is not configured")
	}

	return &ConnectionManager{
		config: cfg,
	}, nil
}

func (cm *ConnectionManager) Connect(ctx context.Context) (Repository, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.repository != nil {
		return cm.repository, nil
	}

	var repo Repository
	var err error

	switch BackendType(cm.config.Type) {
	case BackendFile:
		repo, err = NewFileRepository(cm.config.File.Path)
	case BackendMemory:
		repo = NewMemoryRepository()
	case BackendRedis:
		repo, err = NewRedisRepositoryFromConfig(ctx, &cm.config.Redis)
	case BackendPostgres:
		repo, err = NewPostgresRepositoryFromConfig(ctx, &cm.config.Postgres)
	case BackendMongoDB:
		repo, err = NewMongoRepositoryFromConfig(ctx, &cm.config.MongoDB)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cm.config.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cm.config.Type, err)
	}

	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to ping %s storage: %w", cm.config.Type, err)
	}

	cm.repository = repo
	return repo, nil
}

func (cm *ConnectionManager) GetRepository() (Repository, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.repository == nil {
		return nil, fmt.Errorf("storage connection not established")
	}
	return cm.repository, nil
}

func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.repository != nil {
		err := cm.repository.Close()
		cm.repository = nil
		return err
	}
	return nil
}
