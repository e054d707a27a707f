package poll

import (
	"context"
	"log"
	"sync"
	"time"
)

// Default refresh intervals for the standard views. Active order and
// kitchen queue views refresh every 5s, the menu every 10s.
const (
	OrderInterval = 5 * time.Second
	QueueInterval = 5 * time.Second
	MenuInterval  = 10 * time.Second
)

// Fetcher loads the current state of a polled resource.
type Fetcher func(ctx context.Context) (interface{}, error)

// Source describes a polled resource: how often to refetch it and how.
type Source struct {
	Interval time.Duration
	Fetch    Fetcher
}

// Agent runs one shared fetch loop per key, no matter how many
// subscribers watch that key. A fetch error never tears down the loop;
// the next tick simply tries again and subscribers keep whatever value
// they saw last.
type Agent struct {
	mu    sync.Mutex
	loops map[string]*loop
}

type loop struct {
	source Source
	subs   map[chan interface{}]bool
	kick   chan struct{}
	cancel context.CancelFunc
}

// NewAgent creates an Agent with no active loops.
func NewAgent() *Agent {
	return &Agent{loops: make(map[string]*loop)}
}

// Subscribe starts watching key. The first subscriber for a key starts
// its loop with the given source; later subscribers share that loop and
// their source argument is ignored. The returned channel receives every
// successful fetch result, starting with an immediate one. The returned
// cancel func detaches the subscriber; when the last subscriber for a
// key detaches, the loop stops.
func (a *Agent) Subscribe(ctx context.Context, key string, src Source) (<-chan interface{}, func()) {
	ch := make(chan interface{}, 1)

	a.mu.Lock()
	l, ok := a.loops[key]
	if !ok {
		loopCtx, cancel := context.WithCancel(context.Background())
		l = &loop{
			source: src,
			subs:   make(map[chan interface{}]bool),
			kick:   make(chan struct{}, 1),
			cancel: cancel,
		}
		a.loops[key] = l
		go a.run(loopCtx, key, l)
	}
	l.subs[ch] = true
	a.mu.Unlock()

	unsubscribe := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if !l.subs[ch] {
			return
		}
		delete(l.subs, ch)
		close(ch)
		if len(l.subs) == 0 {
			l.cancel()
			delete(a.loops, key)
		}
	}

	// Tie the subscription to the caller's context
	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			unsubscribe()
		}()
	}

	return ch, unsubscribe
}

// Invalidate forces an immediate refetch of key, ahead of the next
// scheduled tick. No-op when nothing watches the key.
func (a *Agent) Invalidate(key string) {
	a.mu.Lock()
	l, ok := a.loops[key]
	a.mu.Unlock()
	if !ok {
		return
	}

	select {
	case l.kick <- struct{}{}:
	default: // refetch already pending
	}
}

func (a *Agent) run(ctx context.Context, key string, l *loop) {
	ticker := time.NewTicker(l.source.Interval)
	defer ticker.Stop()

	a.fetch(ctx, key, l)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.fetch(ctx, key, l)
		case <-l.kick:
			a.fetch(ctx, key, l)
		}
	}
}

func (a *Agent) fetch(ctx context.Context, key string, l *loop) {
	fetchCtx, cancel := context.WithTimeout(ctx, l.source.Interval)
	defer cancel()

	v, err := l.source.Fetch(fetchCtx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("WARN: poll %s: %v", key, err)
		}
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for ch := range l.subs {
		// Drop the stale queued value so slow consumers always see the
		// freshest fetch when they catch up.
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}
