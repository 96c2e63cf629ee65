package models

import (
	"errors"
	"time"
)

// ErrInvalidRequest is returned when a required request field is missing or empty.
var ErrInvalidRequest = errors.New("invalid request")

// Article is one news item produced by an ingestion run. It is immutable once produced
// and doubles as the payload stored next to its vector in the index.
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishDate string `json:"publishDate"`
	Source      string `json:"source"`
}

// EmbeddingText is the text embedded for an article during ingestion.
func (a Article) EmbeddingText() string {
	return a.Title + "\n\n" + a.Content
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a session's history. Timestamp is unix milliseconds.
type ChatMessage struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// NewChatMessage stamps a message with the given time.
func NewChatMessage(role Role, content string, at time.Time) ChatMessage {
	return ChatMessage{Role: role, Content: content, Timestamp: at.UnixMilli()}
}

// SourceRef is the title/url projection of a retrieved article.
type SourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// QueryResult is the answer to one user query plus the articles it was grounded on,
// in retrieval order.
type QueryResult struct {
	Response string      `json:"response"`
	Sources  []SourceRef `json:"sources"`
}
