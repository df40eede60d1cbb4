package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// LogPublisher writes events to the log
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.Named("events")}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.Info("event",
		zap.String("type", event.Type),
		zap.String("id", event.ID),
		zap.String("org_id", event.OrgID),
		zap.Any("payload", event.Payload))
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns the events of the given type, or all events when typ is empty
func (r *Recorder) Events(typ string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if typ == "" || e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
