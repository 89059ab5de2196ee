package models

import (
	"time"
)

// User represents a forum member. The counters are the attributes trophy
// conditions filter on.
type User struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Username         string    `gorm:"uniqueIndex;not null;size:255" json:"username"`
	Email            string    `gorm:"size:255" json:"email"`
	PostCount        int       `gorm:"not null;default:0;index" json:"post_count"`
	LikesReceived    int       `gorm:"not null;default:0" json:"likes_received"`
	ActivityPoints   int       `gorm:"not null;default:0" json:"activity_points"`
	TrophyPoints     int       `gorm:"not null;default:0" json:"trophy_points"` // number of trophies held
	Banned           bool      `gorm:"not null;default:false" json:"banned"`
	RegistrationDate time.Time `gorm:"not null;index" json:"registration_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}
