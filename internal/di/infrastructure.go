package di

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/pkg/config"
	"github.com/prohmpiriya/concert-booking/pkg/database"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
)

// Infrastructure holds the external connections of a process. Both are nil
// when the memory store driver is selected.
type Infrastructure struct {
	DB    *database.PostgresDB
	Redis *pkgredis.Client
}

// Connect opens PostgreSQL and Redis for the postgres store driver
func Connect(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{}
	if cfg.UsesMemoryStore() {
		log.Warn("STORE_DRIVER=memory: state is kept in process and lost on restart")
		return infra, nil
	}

	if err := cfg.ValidateDatabase(); err != nil {
		return nil, err
	}

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  database.DefaultPostgresConfig().ConnectTimeout,
		MaxRetries:      3,
		RetryInterval:   database.DefaultPostgresConfig().RetryInterval,
		EnableTracing:   cfg.OTel.Enabled,
		ServiceName:     cfg.OTel.ServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	infra.DB = db
	log.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns))

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx, repository.Migrations()); err != nil {
			infra.Close()
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
		log.Info("Database migrations applied")
	}

	redisDefaults := pkgredis.DefaultConfig()
	client, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		PoolTimeout:   redisDefaults.PoolTimeout,
		MaxRetries:    redisDefaults.MaxRetries,
		RetryInterval: redisDefaults.RetryInterval,
		EnableTracing: cfg.OTel.Enabled,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	infra.Redis = client
	log.Info(fmt.Sprintf("Redis connected (pool: %d, minIdle: %d)", cfg.Redis.PoolSize, cfg.Redis.MinIdleConns))

	return infra, nil
}

// Close releases every open connection
func (i *Infrastructure) Close() {
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
