// Package engine exposes the chatbot over JSON HTTP handlers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/newsrag/models"
)

// Chat is the part of the chatbot the HTTP API drives.
type Chat interface {
	ProcessQuery(ctx context.Context, sessionID, message string) (models.QueryResult, error)
	IngestArticles(ctx context.Context) (int, error)
	History(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

type Server struct {
	Chat   Chat
	Logger *slog.Logger
	Now    func() time.Time
	NewID  func() string
}

func NewServer(chat Chat, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Chat:   chat,
		Logger: logger.With("component", "http"),
		Now:    time.Now,
		NewID:  uuid.NewString,
	}
}

// Register mounts the API under g (normally /api).
func (s *Server) Register(g *echo.Group) {
	g.POST("/chat", s.ChatMessage)
	g.POST("/chat/ingest", s.Ingest)
	g.POST("/sessions", s.CreateSession)
	g.GET("/sessions/:sessionId/history", s.History)
	g.DELETE("/sessions/:sessionId", s.ClearSession)
	g.GET("/health", s.Health)
}

type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func (s *Server) ChatMessage(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing sessionId or message"})
	}
	result, err := s.Chat.ProcessQuery(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		s.Logger.Error("chat query failed", "session", req.SessionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to process query"})
	}
	if result.Sources == nil {
		result.Sources = []models.SourceRef{}
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) Ingest(c echo.Context) error {
	count, err := s.Chat.IngestArticles(c.Request().Context())
	if err != nil {
		s.Logger.Error("ingestion request failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Ingestion failed"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   count,
		"message": fmt.Sprintf("Ingested %d articles", count),
	})
}

func (s *Server) CreateSession(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"sessionId": s.NewID()})
}

func (s *Server) History(c echo.Context) error {
	history, err := s.Chat.History(c.Request().Context(), c.Param("sessionId"))
	if err != nil {
		s.Logger.Error("history lookup failed", "session", c.Param("sessionId"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load history"})
	}
	if history == nil {
		history = []models.ChatMessage{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": history})
}

func (s *Server) ClearSession(c echo.Context) error {
	if err := s.Chat.ClearHistory(c.Request().Context(), c.Param("sessionId")); err != nil {
		s.Logger.Error("clear session failed", "session", c.Param("sessionId"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to clear session"})
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}
