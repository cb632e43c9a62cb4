package db

import "time"

// Exclusion stores an unordered pair with PlayerAID < PlayerBID, so the
// unique index covers both directions.
type Exclusion struct {
	ID        uint      `gorm:"primaryKey"`
	GameID    uint      `gorm:"index;not null;uniqueIndex:idx_exclusions_game_pair"`
	PlayerAID uint      `gorm:"not null;uniqueIndex:idx_exclusions_game_pair;check:player_a_id < player_b_id"`
	PlayerBID uint      `gorm:"not null;uniqueIndex:idx_exclusions_game_pair"`
	CreatedAt time.Time `gorm:"not null"`
	PlayerA   Player    `gorm:"foreignKey:PlayerAID"`
	PlayerB   Player    `gorm:"foreignKey:PlayerBID"`
}
