package events

import (
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	TopicAccountLinked       = "account:linked"
	TopicStatsRefreshed      = "stats:refreshed"
	TopicCredentialRefreshed = "credential:refreshed"

	defaultBufferSize = 128
)

// Topics lists every topic the engine publishes, for subscribers that forward
// all of them.
var Topics = []string{TopicAccountLinked, TopicStatsRefreshed, TopicCredentialRefreshed}

// Bus is an in-process fan-out. Publish never blocks: a subscriber whose buffer
// is full misses the event.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string]map[int]chan any
	nextSubID int
	closed    bool

	dropMu     sync.Mutex
	dropCounts map[string]uint64
}

func NewBus() *Bus {
	return &Bus{
		subs:       make(map[string]map[int]chan any),
		dropCounts: make(map[string]uint64),
	}
}

func (b *Bus) Publish(topic string, payload any) {
	if b == nil || topic == "" {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, ch := range b.subs[topic] {
		select {
		case ch <- Envelope{Topic: topic, Payload: payload}:
		default:
			b.recordDrop(topic)
		}
	}
}

// Subscribe returns a channel of Envelope values and a function that removes
// the subscription and closes the channel.
func (b *Bus) Subscribe(topic string) (<-chan any, func()) {
	ch := make(chan any, defaultBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]chan any)
	}
	id := b.nextSubID
	b.nextSubID++
	b.subs[topic][id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs, ok := b.subs[topic]
			if !ok {
				return
			}
			if _, ok := subs[id]; !ok {
				return
			}
			delete(subs, id)
			if len(subs) == 0 {
				delete(b.subs, topic)
			}
			close(ch)
		})
	}

	return ch, unsubscribe
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, topic)
	}
}

func (b *Bus) recordDrop(topic string) {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	b.dropCounts[topic]++
	if b.dropCounts[topic]%100 == 1 {
		log.Warn().Str("topic", topic).Uint64("drops", b.dropCounts[topic]).Msg("events: dropping messages")
	}
}
