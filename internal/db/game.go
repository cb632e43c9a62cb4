package db

import "time"

type Game struct {
	ID             uint      `gorm:"primaryKey"`
	Name           string    `gorm:"size:64;uniqueIndex;not null"`
	Capacity       int       `gorm:"not null;check:capacity >= 2"`
	PasscodeHash   []byte    `gorm:"not null"`
	AdminUsername  string    `gorm:"size:64;index;not null"`
	AdminChatID    int64     `gorm:"not null"`
	Active         bool      `gorm:"not null;default:true"`
	PlayerCount    int       `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
	Participations []Participation
	Exclusions     []Exclusion
	Events         []Event
}
