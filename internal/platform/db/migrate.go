package db

import (
	"fmt"

	"gorm.io/gorm"

	"stockwatcher/internal/platform/logging"
	"stockwatcher/internal/platform/store"
)

// Migrate はテーブルを作成・更新します。既存の列やデータは削除しません。
func Migrate(db *gorm.DB, models ...interface{}) error {
	if len(models) == 0 {
		return store.Errorf("db.Migrate", store.ErrInvalidArgument, "no models to migrate")
	}
	if err := db.AutoMigrate(models...); err != nil {
		return store.Wrap("db.Migrate", fmt.Errorf("auto migrate: %w", err))
	}
	logging.Info().Int("models", len(models)).Msg("schema migrated")
	return nil
}
