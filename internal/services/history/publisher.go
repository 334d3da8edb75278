package history

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// JSONPublisher è implementato da rabbitmq.Publisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, topic string, v any) error
}

// Publisher inoltra gli eventi via MQTT; il servizio history li consuma e li scrive su Influx.
// Record accoda senza bloccare: a coda piena l'evento viene scartato.
type Publisher struct {
	pub     JSONPublisher
	ch      chan Event
	timeout time.Duration
	log     *zap.Logger
	dropped atomic.Int64
}

func NewPublisher(pub JSONPublisher, buffer int, logger *zap.Logger) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		pub:     pub,
		ch:      make(chan Event, buffer),
		timeout: 2 * time.Second,
		log:     logger.Named("history-pub"),
	}
}

func (p *Publisher) Record(evt Event) {
	select {
	case p.ch <- evt:
	default:
		p.dropped.Add(1)
		p.log.Warn("queue full, event dropped", zap.String("type", evt.Type))
	}
}

func (p *Publisher) Dropped() int64 { return p.dropped.Load() }

// Run pubblica gli eventi accodati finché ctx non chiude.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-p.ch:
			pctx, cancel := context.WithTimeout(ctx, p.timeout)
			if err := p.pub.PublishJSON(pctx, TopicFor(evt), evt); err != nil {
				p.log.Warn("publish failed", zap.String("type", evt.Type), zap.Error(err))
			}
			cancel()
		}
	}
}

// TopicFor: event/favorite/{user} per i preferiti, event/flow/{session} per il resto.
func TopicFor(evt Event) string {
	if evt.Type == TypeFavoriteSaved {
		return TopicFavoritePrefix + evt.UserID
	}
	return TopicFlowPrefix + evt.SessionID
}
