package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventGameCreated      = "game_created"
	EventPlayerJoined     = "player_joined"
	EventPlayerRemoved    = "player_removed"
	EventExclusionAdded   = "exclusion_added"
	EventExclusionRemoved = "exclusion_removed"
	EventGameRolledOut    = "game_rolled_out"
)

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    uint           `gorm:"index;not null"`
	PlayerID  *uint          `gorm:"index"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}

type EventPayload struct {
	GameName    string   `json:"game,omitempty"`
	Username    string   `json:"player,omitempty"`
	Other       string   `json:"other,omitempty"`
	Capacity    int      `json:"capacity,omitempty"`
	PlayerCount int      `json:"player_count,omitempty"`
	Givers      []string `json:"givers,omitempty"`
}
