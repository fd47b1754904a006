package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/metrics"
)

const subscriberBuffer = 16

// Broker fans booth events out to every live subscriber. Broadcasting never
// blocks: a subscriber whose buffer is full misses that event instead of
// stalling the broadcaster. Delivery order per subscriber is FIFO.
type Broker struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs map[string]chan Event
}

func NewBroker(log *zap.Logger) *Broker {
	return &Broker{
		log:  log.Named("events"),
		subs: make(map[string]chan Event),
	}
}

// Subscribe registers a new subscriber. The returned channel receives events
// until cancel is called or ctx is done, after which the channel is closed and
// the subscriber is forgotten. Cancel is safe to call more than once.
func (b *Broker) Subscribe(ctx context.Context) (<-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)
	done := make(chan struct{})

	b.mu.Lock()
	b.subs[id] = ch
	count := len(b.subs)
	b.mu.Unlock()

	b.log.Debug("subscriber added", zap.String("subscriber", id), zap.Int("total", count))

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			b.mu.Lock()
			if stored, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(stored)
			}
			b.mu.Unlock()
			b.log.Debug("subscriber removed", zap.String("subscriber", id))
		})
	}

	// The watcher must also wake on manual cancellation, or it would block
	// forever on a non-cancellable context.
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}

	return ch, cancel
}

// Broadcast delivers event to every current subscriber. With zero subscribers
// it is a no-op.
func (b *Broker) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Slow consumer; dropping beats stalling every other observer.
			metrics.Booth().ObserveDroppedEvent()
			b.log.Warn("subscriber buffer full, dropping event",
				zap.String("subscriber", id),
				zap.String("kind", string(event.Kind())))
		}
	}
}

// SubscriberCount reports how many subscribers are currently registered.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
