// Package app owns every process-wide resource: configuration, logger, database and Redis
// connections, and the services built on them. Commands create one App at start and Close it
// on the way out; nothing here lives in package-level state.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/booking"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
	"github.com/hackgods/clinic-booking/internal/seed"
)

type App struct {
	Cfg   config.Config
	Log   *zap.Logger
	PG    *pgxpool.Pool
	DB    *gorm.DB
	Redis *redis.Client

	Users   *auth.GormUserRepository
	Auth    *auth.Service
	Booking *booking.Service
	Seeder  *seed.Seeder
}

// New connects to Postgres and Redis, migrates the schema and wires the services.
// On error everything opened so far is closed again.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *App, err error) {
	a := &App{Cfg: cfg, Log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	a.PG, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PoolOptions())
	cancelPg()
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	log.Info("connected to postgres")

	a.DB, err = db.OpenGorm(a.PG, log)
	if err != nil {
		return nil, err
	}

	migrateCtx, cancelMigrate := context.WithTimeout(ctx, 30*time.Second)
	err = db.AutoMigrate(migrateCtx, a.DB, log, &auth.User{}, &booking.Slot{}, &booking.Booking{})
	cancelMigrate()
	if err != nil {
		return nil, err
	}

	a.Redis, err = redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	var cache booking.SlotCache = booking.NopSlotCache{}
	if cfg.SlotCacheTTL > 0 {
		cache = redisclient.NewSlotCache(a.Redis, cfg.SlotCacheTTL)
	}

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is not set; login and protected routes will fail with missing_config")
	}

	a.Users = auth.NewGormUserRepository(a.DB)
	a.Auth = auth.NewService(a.Users, auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL), cfg.BcryptCost)
	a.Booking = booking.NewService(booking.NewGormRepository(a.DB), cache, cfg.SlotHorizon(), log.Named("booking"))
	a.Seeder = seed.New(
		a.DB,
		a.Users,
		redisclient.NewRedisLocker(a.Redis, cfg.LockTTL),
		cache,
		seed.Options{
			Days:          cfg.SlotHorizonDays,
			Location:      cfg.SlotTimezone,
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
			BcryptCost:    cfg.BcryptCost,
		},
		log.Named("seed"),
	)

	return a, nil
}

// Close releases connections in reverse order of acquisition. Safe on a partially built App.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn("error closing redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.PG != nil {
		a.PG.Close()
	}
	_ = a.Log.Sync()
}

// SeedAll creates the admin account and regenerates the slot horizon.
func (a *App) SeedAll(ctx context.Context) error {
	if err := a.Seeder.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if _, err := a.Seeder.ReseedSlots(ctx, time.Now()); err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			a.Log.Info("slot reseed already running elsewhere, skipping")
			return nil
		}
		return fmt.Errorf("seed slots: %w", err)
	}
	return nil
}
