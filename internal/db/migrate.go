package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the tables for models, in the given order so foreign keys resolve.
func AutoMigrate(ctx context.Context, gdb *gorm.DB, log *zap.Logger, models ...any) error {
	for _, m := range models {
		if err := gdb.WithContext(ctx).AutoMigrate(m); err != nil {
			log.Error("migration failed", zap.String("model", fmt.Sprintf("%T", m)), zap.Error(err))
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	log.Info("migrations applied", zap.Int("models", len(models)))
	return nil
}
