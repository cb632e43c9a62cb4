package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ovsov/tecret-anta/internal/roster"
)

const defaultPageSize = 50

// GormStore is the Postgres implementation of roster.Store. Every mutation
// runs in a transaction holding a row lock on the game, which serializes
// writers of one game and leaves other games alone.
type GormStore struct {
	db           *gorm.DB
	passcodeCost int
	pageSize     int
}

func NewGormStore(conn *gorm.DB, passcodeCost int) *GormStore {
	return &GormStore{db: conn, passcodeCost: passcodeCost, pageSize: defaultPageSize}
}

var _ roster.Store = (*GormStore)(nil)

func (s *GormStore) CreateGame(ctx context.Context, req roster.NewGame) (roster.Game, error) {
	req, err := roster.ValidateNewGame(req)
	if err != nil {
		return roster.Game{}, err
	}
	hash, err := roster.HashPasscode(req.Passcode, s.passcodeCost)
	if err != nil {
		return roster.Game{}, err
	}

	var out roster.Game
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&Game{}).Where("name = ?", req.Name).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return roster.ErrDuplicateName
		}
		admin, err := upsertPlayer(tx, req.AdminUsername, req.AdminChatID)
		if err != nil {
			return err
		}
		record := Game{
			Name:          req.Name,
			Capacity:      req.Capacity,
			PasscodeHash:  hash,
			AdminUsername: req.AdminUsername,
			AdminChatID:   admin.ChatID,
			Active:        true,
			PlayerCount:   1,
		}
		if err := tx.Create(&record).Error; err != nil {
			if isUniqueViolation(err) {
				return roster.ErrDuplicateName
			}
			return err
		}
		if err := tx.Create(&Participation{GameID: record.ID, PlayerID: admin.ID}).Error; err != nil {
			return err
		}
		out = toGame(record)
		return recordEvent(tx, record.ID, &admin.ID, EventGameCreated, EventPayload{
			GameName: record.Name,
			Username: admin.Username,
			Capacity: record.Capacity,
		})
	})
	return out, err
}

func (s *GormStore) Game(ctx context.Context, name string) (roster.Game, error) {
	var record Game
	err := s.db.WithContext(ctx).Where("name = ?", roster.NormalizeName(name)).First(&record).Error
	if err != nil {
		return roster.Game{}, notFound(err, name)
	}
	return toGame(record), nil
}

func (s *GormStore) GamesByAdmin(ctx context.Context, username string) ([]roster.Game, error) {
	var records []Game
	err := s.db.WithContext(ctx).
		Where("admin_username = ?", roster.NormalizeUsername(username)).
		Order("name").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	games := make([]roster.Game, 0, len(records))
	for _, record := range records {
		games = append(games, toGame(record))
	}
	return games, nil
}

func (s *GormStore) Roster(ctx context.Context, name string) (roster.Roster, error) {
	var out roster.Roster
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record Game
		if err := tx.Where("name = ?", roster.NormalizeName(name)).First(&record).Error; err != nil {
			return notFound(err, name)
		}
		r, _, err := loadRoster(tx, record)
		out = r
		return err
	})
	return out, err
}

func (s *GormStore) AddParticipant(ctx context.Context, name, username string, chatID int64) (roster.Game, error) {
	username = roster.NormalizeUsername(username)
	var out roster.Game
	err := s.withGame(ctx, name, func(tx *gorm.DB, record *Game, r roster.Roster, _ map[string]uint) error {
		if err := roster.CheckJoin(r, username); err != nil {
			return err
		}
		player, err := upsertPlayer(tx, username, chatID)
		if err != nil {
			return err
		}
		if err := tx.Create(&Participation{GameID: record.ID, PlayerID: player.ID}).Error; err != nil {
			if isUniqueViolation(err) {
				return roster.ErrAlreadyJoined
			}
			return err
		}
		record.PlayerCount = len(r.Participants) + 1
		if err := tx.Model(record).Update("player_count", record.PlayerCount).Error; err != nil {
			return err
		}
		out = toGame(*record)
		return recordEvent(tx, record.ID, &player.ID, EventPlayerJoined, EventPayload{
			Username:    username,
			PlayerCount: record.PlayerCount,
		})
	})
	return out, err
}

func (s *GormStore) RemoveParticipant(ctx context.Context, name, username string) (roster.Game, error) {
	username = roster.NormalizeUsername(username)
	var out roster.Game
	err := s.withGame(ctx, name, func(tx *gorm.DB, record *Game, r roster.Roster, ids map[string]uint) error {
		if err := roster.CheckRemoval(r, username); err != nil {
			return err
		}
		playerID := ids[username]
		if err := tx.Where("game_id = ? AND (player_a_id = ? OR player_b_id = ?)", record.ID, playerID, playerID).
			Delete(&Exclusion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("game_id = ? AND player_id = ?", record.ID, playerID).
			Delete(&Participation{}).Error; err != nil {
			return err
		}
		record.PlayerCount = len(r.Participants) - 1
		if err := tx.Model(record).Update("player_count", record.PlayerCount).Error; err != nil {
			return err
		}
		out = toGame(*record)
		return recordEvent(tx, record.ID, &playerID, EventPlayerRemoved, EventPayload{
			Username:    username,
			PlayerCount: record.PlayerCount,
		})
	})
	return out, err
}

func (s *GormStore) AddExclusion(ctx context.Context, name, a, b string) (roster.Exclusion, error) {
	var out roster.Exclusion
	err := s.withGame(ctx, name, func(tx *gorm.DB, record *Game, r roster.Roster, ids map[string]uint) error {
		exclusion, err := roster.CheckExclusion(r, a, b)
		if err != nil {
			return err
		}
		low, high := orderedIDs(ids[exclusion.A], ids[exclusion.B])
		if err := tx.Create(&Exclusion{GameID: record.ID, PlayerAID: low, PlayerBID: high}).Error; err != nil {
			if isUniqueViolation(err) {
				return roster.ErrDuplicateExclusion
			}
			return err
		}
		out = exclusion
		return recordEvent(tx, record.ID, nil, EventExclusionAdded, EventPayload{
			Username: exclusion.A,
			Other:    exclusion.B,
		})
	})
	return out, err
}

func (s *GormStore) RemoveExclusion(ctx context.Context, name, a, b string) error {
	a, b = roster.NormalizeUsername(a), roster.NormalizeUsername(b)
	return s.withGame(ctx, name, func(tx *gorm.DB, record *Game, r roster.Roster, ids map[string]uint) error {
		if !r.Game.Active {
			return roster.ErrInactiveGame
		}
		idA, okA := ids[a]
		idB, okB := ids[b]
		if !okA || !okB {
			return roster.ErrExclusionNotFound
		}
		low, high := orderedIDs(idA, idB)
		result := tx.Where("game_id = ? AND player_a_id = ? AND player_b_id = ?", record.ID, low, high).
			Delete(&Exclusion{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return roster.ErrExclusionNotFound
		}
		pair := roster.NewExclusion(a, b)
		return recordEvent(tx, record.ID, nil, EventExclusionRemoved, EventPayload{
			Username: pair.A,
			Other:    pair.B,
		})
	})
}

func (s *GormStore) ListAvailableGames(ctx context.Context) iter.Seq2[roster.Game, error] {
	return func(yield func(roster.Game, error) bool) {
		after := ""
		for {
			var page []Game
			err := s.db.WithContext(ctx).
				Where("active = ? AND player_count < capacity AND name > ?", true, after).
				Order("name").
				Limit(s.pageSize).
				Find(&page).Error
			if err != nil {
				yield(roster.Game{}, err)
				return
			}
			for _, record := range page {
				if !yield(toGame(record), nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			after = page[len(page)-1].Name
		}
	}
}

func (s *GormStore) VerifyPasscode(ctx context.Context, name, candidate string) (bool, error) {
	game, err := s.Game(ctx, name)
	if err != nil {
		return false, err
	}
	return roster.CheckPasscode(game.PasscodeHash, candidate), nil
}

func (s *GormStore) Rollout(ctx context.Context, name, adminUsername string, gen roster.Generator) ([]roster.Assignment, error) {
	var out []roster.Assignment
	err := s.withGame(ctx, name, func(tx *gorm.DB, record *Game, r roster.Roster, ids map[string]uint) error {
		assignments, err := roster.PlanRollout(r, roster.NormalizeUsername(adminUsername), gen)
		if err != nil {
			return err
		}
		givers := make([]string, 0, len(assignments))
		for _, a := range assignments {
			err := tx.Model(&Participation{}).
				Where("game_id = ? AND player_id = ?", record.ID, ids[a.Giver.Username]).
				Update("assigned_receiver", a.Receiver).Error
			if err != nil {
				return err
			}
			givers = append(givers, a.Giver.Username)
		}
		record.Active = false
		if err := tx.Model(record).Update("active", false).Error; err != nil {
			return err
		}
		out = assignments
		return recordEvent(tx, record.ID, nil, EventGameRolledOut, EventPayload{
			GameName:    record.Name,
			PlayerCount: len(assignments),
			Givers:      givers,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type gameTxFunc func(tx *gorm.DB, record *Game, r roster.Roster, playerIDs map[string]uint) error

// withGame opens a transaction, locks the game row and hands fn the current
// roster. Returning an error rolls back everything fn wrote.
func (s *GormStore) withGame(ctx context.Context, name string, fn gameTxFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record Game
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", roster.NormalizeName(name)).
			First(&record).Error
		if err != nil {
			return notFound(err, name)
		}
		r, ids, err := loadRoster(tx, record)
		if err != nil {
			return err
		}
		return fn(tx, &record, r, ids)
	})
}

func loadRoster(tx *gorm.DB, record Game) (roster.Roster, map[string]uint, error) {
	var participations []Participation
	if err := tx.Preload("Player").Where("game_id = ?", record.ID).Order("id").Find(&participations).Error; err != nil {
		return roster.Roster{}, nil, err
	}
	var exclusions []Exclusion
	if err := tx.Preload("PlayerA").Preload("PlayerB").Where("game_id = ?", record.ID).Order("id").Find(&exclusions).Error; err != nil {
		return roster.Roster{}, nil, err
	}

	out := roster.Roster{Game: toGame(record)}
	ids := make(map[string]uint, len(participations))
	for _, p := range participations {
		out.Participants = append(out.Participants, roster.Participation{
			Player:           roster.Player{Username: p.Player.Username, ChatID: p.Player.ChatID},
			JoinedAt:         p.CreatedAt,
			AssignedReceiver: p.AssignedReceiver,
		})
		ids[p.Player.Username] = p.PlayerID
	}
	for _, e := range exclusions {
		out.Exclusions = append(out.Exclusions, roster.NewExclusion(e.PlayerA.Username, e.PlayerB.Username))
	}
	return out, ids, nil
}

func upsertPlayer(tx *gorm.DB, username string, chatID int64) (Player, error) {
	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"chat_id", "updated_at"}),
	}
	if chatID == 0 {
		conflict = clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}
	}
	player := Player{Username: username, ChatID: chatID}
	if err := tx.Clauses(conflict).Create(&player).Error; err != nil {
		return Player{}, err
	}
	if player.ID == 0 || chatID == 0 {
		if err := tx.Where("username = ?", username).First(&player).Error; err != nil {
			return Player{}, err
		}
	}
	return player, nil
}

func recordEvent(tx *gorm.DB, gameID uint, playerID *uint, eventType string, payload EventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&Event{
		GameID:   gameID,
		PlayerID: playerID,
		Type:     eventType,
		Payload:  datatypes.JSON(data),
	}).Error
}

func toGame(record Game) roster.Game {
	return roster.Game{
		Name:          record.Name,
		Capacity:      record.Capacity,
		AdminUsername: record.AdminUsername,
		AdminChatID:   record.AdminChatID,
		PasscodeHash:  record.PasscodeHash,
		Active:        record.Active,
		PlayerCount:   record.PlayerCount,
		CreatedAt:     record.CreatedAt,
	}
}

func orderedIDs(a, b uint) (uint, uint) {
	if b < a {
		return b, a
	}
	return a, b
}

func notFound(err error, name string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", roster.ErrGameNotFound, name)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
