package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/queue"
)

// ActivityPublisher delivers task events to the broker.
type ActivityPublisher interface {
	Publish(ctx context.Context, ev queue.TaskEvent) error
}

const publishTimeout = 5 * time.Second

// activity publishes events in the background.  A failed publish is
// logged and never reaches the caller.
type activity struct {
	pub ActivityPublisher
	log *slog.Logger
}

func (a activity) emit(typ string, actor int64, t *model.Task, fromColumn int64, at time.Time) {
	if a.pub == nil {
		return
	}
	ev := queue.TaskEvent{
		Type:         typ,
		TaskID:       t.ID,
		Title:        t.Title,
		ActorID:      actor,
		Status:       t.Status,
		ColumnID:     t.ColumnID,
		FromColumnID: fromColumn,
		OccurredAt:   at.UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := a.pub.Publish(ctx, ev); err != nil {
			a.log.Warn("publish activity failed", "type", ev.Type, "task_id", ev.TaskID, "err", err)
		}
	}()
}

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

func utcNow() time.Time { return time.Now().UTC() }
