// Package status serves a small read-only HTTP API for operators: health,
// open games and per-game enrollment. Passcodes and assignments are never
// exposed.
package status

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ovsov/tecret-anta/internal/roster"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type Server struct {
	store roster.Store
	token string
	log   *slog.Logger
}

func New(store roster.Store, token string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{store: store, token: token, log: logger}
}

type gameSummary struct {
	Name        string    `json:"name"`
	Admin       string    `json:"admin"`
	Capacity    int       `json:"capacity"`
	PlayerCount int       `json:"player_count"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type gameDetail struct {
	gameSummary
	Players    []string `json:"players"`
	Exclusions int      `json:"exclusions"`
	Drawn      bool     `json:"drawn"`
}

type gameURI struct {
	Name string `uri:"name" binding:"required"`
}

func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api", s.requireToken())
	api.GET("/games", s.handleAvailableGames)
	api.GET("/games/:name", s.handleGame)
	return router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAvailableGames(c *gin.Context) {
	page, perPage := parsePagination(c, defaultPerPage, maxPerPage)
	skip := (page - 1) * perPage

	games := make([]gameSummary, 0, perPage)
	index := 0
	hasNext := false
	for game, err := range s.store.ListAvailableGames(c.Request.Context()) {
		if err != nil {
			s.log.Error("list available games", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list games"})
			return
		}
		switch {
		case index < skip:
		case len(games) < perPage:
			games = append(games, summarize(game))
		default:
			hasNext = true
		}
		index++
		if hasNext {
			break
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"games":    games,
		"page":     page,
		"per_page": perPage,
		"has_next": hasNext,
	})
}

func (s *Server) handleGame(c *gin.Context) {
	var uri gameURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	r, err := s.store.Roster(c.Request.Context(), uri.Name)
	if errors.Is(err, roster.ErrGameNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	if err != nil {
		s.log.Error("load roster", "game", uri.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game"})
		return
	}
	detail := gameDetail{
		gameSummary: summarize(r.Game),
		Players:     r.Usernames(),
		Exclusions:  len(r.Exclusions),
		Drawn:       !r.Game.Active,
	}
	c.JSON(http.StatusOK, detail)
}

// requireToken rejects every request when no token is configured.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		provided, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || s.token == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(provided)), []byte(s.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func summarize(game roster.Game) gameSummary {
	return gameSummary{
		Name:        game.Name,
		Admin:       game.AdminUsername,
		Capacity:    game.Capacity,
		PlayerCount: game.PlayerCount,
		Active:      game.Active,
		CreatedAt:   game.CreatedAt,
	}
}

func parsePagination(c *gin.Context, defaultPerPage, maxPerPage int) (int, int) {
	page := 1
	perPage := defaultPerPage
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			page = value
		}
	}
	if raw := strings.TrimSpace(c.Query("per_page")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			perPage = value
		}
	}
	if maxPerPage > 0 && perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
