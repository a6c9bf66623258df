package forward

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/watchwire/internal/kv"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
	ids   []string
	err   error
}

func (r *recorder) Forward(ctx context.Context, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, content)
	r.ids = append(r.ids, RequestID(ctx))
	return r.err
}

func (r *recorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...), append([]string(nil), r.ids...)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func stop(t *testing.T, a *Adapter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
}

func TestAdapter_ForwardsOnlyOnChange(t *testing.T) {
	rec := &recorder{}
	a := NewAdapter(nil, rec, quietLogger())
	a.Start(context.Background())

	var queued []bool
	for _, v := range []string{"A", "A", "B", "A"} {
		queued = append(queued, a.ForwardIfNew(v))
	}
	stop(t, a)

	assert.Equal(t, []bool{true, false, true, true}, queued)
	calls, ids := rec.snapshot()
	assert.Equal(t, []string{"A", "B", "A"}, calls)
	for _, id := range ids {
		assert.NotEmpty(t, id)
	}
	assert.NotEqual(t, ids[0], ids[1])
	assert.Equal(t, int64(3), a.Stats().Forwarded)
}

func TestAdapter_EmptyContentOnEmptyCacheIsNotForwarded(t *testing.T) {
	a := NewAdapter(nil, &recorder{}, quietLogger())
	assert.False(t, a.ForwardIfNew(""))
	assert.True(t, a.ForwardIfNew("x"))
	assert.True(t, a.ForwardIfNew(""))
}

func TestAdapter_DoesNotBlockOnSlowConsumer(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	slow := ConsumerFunc(func(ctx context.Context, content string) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	})

	a := NewAdapter(nil, slow, quietLogger())
	a.Start(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			a.ForwardIfNew(string(rune('a' + i%26)) + time.Duration(i).String())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ForwardIfNew blocked on a slow consumer")
	}

	<-started
	close(release)
	stop(t, a)
	assert.Equal(t, int64(100), a.Stats().Forwarded)
}

func TestAdapter_FailuresAreCountedNotRetried(t *testing.T) {
	boom := errors.New("upstream down")
	rec := &recorder{err: boom}
	a := NewAdapter(nil, rec, quietLogger())

	var mu sync.Mutex
	var results []error
	a.OnResult = func(err error) {
		mu.Lock()
		results = append(results, err)
		mu.Unlock()
	}
	a.Start(context.Background())

	a.ForwardIfNew("A")
	stop(t, a)

	calls, _ := rec.snapshot()
	assert.Equal(t, []string{"A"}, calls)
	assert.Equal(t, int64(1), a.Stats().Failed)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	var ferr *DownstreamForwardError
	require.True(t, errors.As(results[0], &ferr))
	assert.ErrorIs(t, ferr, boom)
	assert.NotEmpty(t, ferr.RequestID)

	// A failed forward still updates the cache.
	assert.Equal(t, "A", a.Cache().Last())
}

func TestAdapter_StopWithoutStart(t *testing.T) {
	a := NewAdapter(nil, nil, quietLogger())
	stop(t, a)
	assert.False(t, a.ForwardIfNew("A"))
}

func TestCache_ResetAndPersistence(t *testing.T) {
	store, err := kv.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	c := NewCache(store, quietLogger())
	assert.False(t, c.Restore(ctx))

	c.Set("A")
	got, err := store.Get(ctx, CacheKey)
	require.NoError(t, err)
	assert.Equal(t, "A", got)

	resumed := NewCache(store, quietLogger())
	assert.True(t, resumed.Restore(ctx))
	assert.Equal(t, "A", resumed.Last())

	c.Reset()
	assert.Equal(t, "", c.Last())
	_, err = store.Get(ctx, CacheKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

// gatedStore holds every Set until release is closed.
type gatedStore struct {
	mu      sync.Mutex
	values  map[string]string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		values:  map[string]string{},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *gatedStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return v, nil
}

func (s *gatedStore) Set(_ context.Context, key, value string) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *gatedStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func TestCache_ResetWinsOverInFlightWrite(t *testing.T) {
	store := newGatedStore()
	cache := NewCache(store, quietLogger())
	a := NewAdapter(cache, Discard, quietLogger())
	a.Start(context.Background())

	require.True(t, a.ForwardIfNew("late frame"))
	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not persist")
	}

	// The read side keeps going while the store write is stuck.
	queued := make(chan bool, 1)
	go func() { queued <- a.ForwardIfNew("next frame") }()
	select {
	case ok := <-queued:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("ForwardIfNew waited on the store")
	}

	reset := make(chan struct{})
	go func() {
		cache.Reset()
		close(reset)
	}()
	select {
	case <-reset:
		t.Fatal("Reset returned while a store write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	<-reset
	stop(t, a)

	assert.Equal(t, "", cache.Last())
	fresh := NewCache(store, quietLogger())
	assert.False(t, fresh.Restore(context.Background()), "teardown value must not come back")
}

func TestCache_QueuedWriteDroppedAfterReset(t *testing.T) {
	store, err := kv.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cache := NewCache(store, quietLogger())
	a := NewAdapter(cache, Discard, quietLogger())
	require.True(t, a.ForwardIfNew("A"))
	require.True(t, a.ForwardIfNew("B"))
	cache.Reset()

	a.Start(context.Background())
	stop(t, a)

	_, err = store.Get(context.Background(), CacheKey)
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestAdapter_WorkerPersistsLatestValue(t *testing.T) {
	store, err := kv.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	a := NewAdapter(NewCache(store, quietLogger()), Discard, quietLogger())
	for _, v := range []string{"A", "B", "A"} {
		require.True(t, a.ForwardIfNew(v))
	}
	a.Start(context.Background())
	stop(t, a)

	got, err := store.Get(context.Background(), CacheKey)
	require.NoError(t, err)
	assert.Equal(t, "A", got)
}

func TestLogConsumer_RequiresLogger(t *testing.T) {
	assert.Error(t, LogConsumer{}.Forward(context.Background(), "x"))
	assert.NoError(t, LogConsumer{Log: quietLogger()}.Forward(context.Background(), "x"))
}
