package forward

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Stats counts dispatched forwards.
type Stats struct {
	Queued    int
	Forwarded int64
	Failed    int64
}

// Adapter forwards content to a Consumer when it differs from the last
// forwarded value. Dispatch happens on a worker goroutine fed by an
// unbounded queue, so ForwardIfNew never waits on the consumer.
type Adapter struct {
	cache    *Cache
	consumer Consumer
	log      *logrus.Entry
	queue    *queue

	// OnResult, when set, is called from the worker after each dispatch.
	OnResult func(err error)

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	forwarded atomic.Int64
	failed    atomic.Int64
}

// NewAdapter builds an adapter. A nil cache gets a fresh in-memory one; a
// nil consumer discards.
func NewAdapter(cache *Cache, consumer Consumer, log *logrus.Entry) *Adapter {
	if cache == nil {
		cache = NewCache(nil, log)
	}
	if consumer == nil {
		consumer = Discard
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Adapter{
		cache:    cache,
		consumer: consumer,
		log:      log,
		queue:    newQueue(),
		done:     make(chan struct{}),
	}
}

// Cache returns the adapter's forward cache.
func (a *Adapter) Cache() *Cache {
	return a.cache
}

// Start launches the dispatch worker. It returns immediately; calling it
// more than once has no effect.
func (a *Adapter) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		a.cancel = cancel
		go a.run(runCtx)
	})
}

// ForwardIfNew queues content for the consumer unless it equals the last
// forwarded value. It reports whether content was queued. The cache is
// updated in memory at once; the store write happens on the worker.
func (a *Adapter) ForwardIfNew(content string) bool {
	gen, ok := a.cache.swapIfDifferent(content)
	if !ok {
		return false
	}
	if !a.queue.push(pending{content: content, gen: gen}) {
		a.log.Warn("forward queue closed, dropping content")
		return false
	}
	return true
}

// Stop closes the queue and waits for queued forwards to drain or ctx to
// end, whichever comes first.
func (a *Adapter) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.queue.close()
		if a.cancel == nil {
			return
		}
		select {
		case <-a.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		a.cancel()
	})
	return err
}

// Stats returns dispatch counters.
func (a *Adapter) Stats() Stats {
	return Stats{
		Queued:    a.queue.len(),
		Forwarded: a.forwarded.Load(),
		Failed:    a.failed.Load(),
	}
}

func (a *Adapter) run(ctx context.Context) {
	defer close(a.done)
	for {
		item, ok := a.queue.pop(ctx)
		if !ok {
			return
		}
		a.cache.persist(item.content, item.gen)
		a.dispatch(ctx, item.content)
	}
}

func (a *Adapter) dispatch(ctx context.Context, content string) {
	id := uuid.NewString()
	err := a.consumer.Forward(WithRequestID(ctx, id), content)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		a.failed.Add(1)
		ferr := &DownstreamForwardError{RequestID: id, Err: err}
		a.log.WithError(ferr).WithField("bytes", len(content)).Error("forward failed")
		if a.OnResult != nil {
			a.OnResult(ferr)
		}
		return
	}
	a.forwarded.Add(1)
	a.log.WithFields(logrus.Fields{"request_id": id, "bytes": len(content)}).Debug("forwarded")
	if a.OnResult != nil {
		a.OnResult(nil)
	}
}
