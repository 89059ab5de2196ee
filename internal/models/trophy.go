// Package models defines domain models for the forum trophy system.
package models

import (
	"encoding/json"
	"time"
)

// Trophy represents an award that can be granted to users, either manually
// or by the automatic assignment job.
type Trophy struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	Title              string            `gorm:"uniqueIndex;not null;size:255" json:"title"`
	Description        string            `gorm:"type:text" json:"description"`
	Icon               string            `gorm:"size:50" json:"icon"`
	AwardAutomatically bool              `gorm:"not null;default:false;index" json:"award_automatically"`
	IsDisabled         bool              `gorm:"not null;default:false;index" json:"is_disabled"`
	ShowOrder          int               `gorm:"not null;default:0" json:"show_order"`
	Conditions         []TrophyCondition `gorm:"foreignKey:TrophyID;constraint:OnDelete:CASCADE" json:"conditions,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// TableName specifies the table name for Trophy model.
func (Trophy) TableName() string {
	return "trophies"
}

// IsAutoAwardable reports whether the assignment job may consider the trophy.
func (t *Trophy) IsAutoAwardable() bool {
	return t.AwardAutomatically && !t.IsDisabled
}

// TrophyCondition is one stored configuration of a condition type for a trophy.
type TrophyCondition struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TrophyID      uint            `gorm:"not null;index" json:"trophy_id"`
	ConditionType string          `gorm:"not null;size:100" json:"condition_type"`
	Data          json.RawMessage `gorm:"type:text" json:"data"` // handler-specific JSON
	SortOrder     int             `gorm:"not null;default:0" json:"sort_order"`
}

// TableName specifies the table name for TrophyCondition model.
func (TrophyCondition) TableName() string {
	return "trophy_conditions"
}

// UserTrophy records that a user was awarded a trophy.
type UserTrophy struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	TrophyID uint      `gorm:"not null;index:idx_user_trophies_trophy_user,priority:1" json:"trophy_id"`
	Trophy   Trophy    `gorm:"foreignKey:TrophyID" json:"trophy,omitempty"`
	UserID   uint      `gorm:"not null;index:idx_user_trophies_trophy_user,priority:2;index" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Time     time.Time `gorm:"not null" json:"time"`
}

// TableName specifies the table name for UserTrophy model.
func (UserTrophy) TableName() string {
	return "user_trophies"
}
