package chatbot

import (
	"context"

	"github.com/mohammad-safakhou/newsrag/models"
)

// Notifier receives progress of queries started with ProcessQueryNotify.
// Calls are synchronous and happen on the querying goroutine.
type Notifier interface {
	Working(ctx context.Context, sessionID string, working bool)
	Result(ctx context.Context, sessionID string, result models.QueryResult)
	Failed(ctx context.Context, sessionID string, err error)
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Working(context.Context, string, bool)              {}
func (NopNotifier) Result(context.Context, string, models.QueryResult) {}
func (NopNotifier) Failed(context.Context, string, error)              {}
