package storage

import (
	"context"

	"github.com/lugondev/anchorlite/internal/config"
)

var (
	redisFactory    func(context.Context, *config.RedisConfig) (Repository, error)
	postgresFactory func(context.Context, *config.PostgresConfig) (Repository, error)
	mongoFactory    func(context.Context, *config.MongoDBConfig) (Repository, error)
)

func RegisterRedisFactory(factory func(context.Context, *config.RedisConfig) (Repository, error)) {
	redisFactory = factory
}

func RegisterPostgresFactory(factory func(context.Context, *config.PostgresConfig) (Repository, error)) {
	postgresFactory = factory
}

func RegisterMongoFactory(factory func(context.Context, *config.MongoDBConfig) (Repository, error)) {
	mongoFactory = factory
}

func NewRedisRepositoryFromConfig(ctx context.Context, cfg *config.RedisConfig) (Repository, error) {
	if redisFactory == nil {
		panic("redis factory not registered - import _ \"github.com/lugondev/anchorlite/internal/storage/redis\"")
	}
	return redisFactory(ctx, cfg)
}

func NewPostgresRepositoryFromConfig(ctx context.Context, cfg *config.PostgresConfig) (Repository, error) {
	if postgresFactory == nil {
		panic("postgres factory not registered - import _ \"github.com/lugondev/anchorlite/internal/storage/postgres\"")
	}
	return postgresFactory(ctx, cfg)
}

func NewMongoRepositoryFromConfig(ctx context.Context, cfg *config.MongoDBConfig) (Repository, error) {
	if mongoFactory == nil {
		panic("mongo factory not registered - import _ \"github.com/lugondev/anchorlite/internal/storage/mongo\"")
	}
	return mongoFactory(ctx, cfg)
}
