package db

import "time"

type Participation struct {
	ID               uint      `gorm:"primaryKey"`
	GameID           uint      `gorm:"index;not null;uniqueIndex:idx_participations_game_player"`
	PlayerID         uint      `gorm:"index;not null;uniqueIndex:idx_participations_game_player"`
	AssignedReceiver string    `gorm:"size:64"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
	Player           Player
}
