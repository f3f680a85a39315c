/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// WebhookTarget receives playlist notifications. Device renderers register
// one to learn when a new manifest is ready.
type WebhookTarget struct {
	ID           string `gorm:"type:uuid;primaryKey" json:"id"`
	InfoscreenID string `gorm:"type:varchar(36);index" json:"infoscreen_id,omitempty"` // empty = every screen
	URL          string `gorm:"type:varchar(512);not null" json:"url"`
	Events       string `gorm:"type:varchar(255)" json:"events"` // comma-separated: playlist.published,playlist.failed
	Secret       string `gorm:"type:varchar(255)" json:"-"`      // for HMAC signing
	Active       bool   `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (WebhookTarget) TableName() string {
	return "webhook_targets"
}

// Handles reports whether the target subscribed to eventType. An empty
// event list subscribes to everything.
func (w WebhookTarget) Handles(eventType string) bool {
	if strings.TrimSpace(w.Events) == "" {
		return true
	}
	for _, e := range strings.Split(w.Events, ",") {
		if strings.TrimSpace(e) == eventType {
			return true
		}
	}
	return false
}

// WebhookLog records webhook delivery attempts.
type WebhookLog struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	TargetID   string    `gorm:"type:uuid;index;not null" json:"target_id"`
	Event      string    `gorm:"type:varchar(64);not null" json:"event"`
	Payload    string    `gorm:"type:text" json:"payload,omitempty"`
	StatusCode int       `json:"status_code"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	Duration   int       `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the table name for GORM.
func (WebhookLog) TableName() string {
	return "webhook_logs"
}
