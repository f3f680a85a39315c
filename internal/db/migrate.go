/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/friendsincode/infoscreen/internal/models"
)

// Migrate applies database schema migrations using GORM auto-migrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Infoscreen{},
		&models.Slide{},
		&models.InfoscreenSlide{},
		&models.PublishedPlaylist{},
		&models.WebhookTarget{},
		&models.WebhookLog{},
	); err != nil {
		return err
	}

	if err := backfillSlotSeconds(database); err != nil {
		return err
	}
	if err := backfillSlideStatus(database); err != nil {
		return err
	}
	return nil
}

// backfillSlotSeconds gives screens created before slot timing existed the default.
func backfillSlotSeconds(database *gorm.DB) error {
	err := database.Model(&models.Infoscreen{}).
		Where("slot_seconds IS NULL OR slot_seconds <= 0").
		Update("slot_seconds", models.DefaultSlotSeconds).Error
	if err != nil {
		return fmt.Errorf("backfill slot seconds: %w", err)
	}
	return nil
}

// backfillSlideStatus marks slides without a status as pending review.
func backfillSlideStatus(database *gorm.DB) error {
	err := database.Model(&models.Slide{}).
		Where("status IS NULL OR status = ''").
		Update("status", models.SlidePending).Error
	if err != nil {
		return fmt.Errorf("backfill slide status: %w", err)
	}
	return nil
}
