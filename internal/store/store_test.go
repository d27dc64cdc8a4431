package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/flowforge/internal/domain"
)

func openMemory(t *testing.T) Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Backend: BackendMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func openRedis(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(RedisOptions{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// backends — общие тесты KV-контракта для всех backend'ов без внешних зависимостей.
var backends = map[string]func(t *testing.T) Store{
	"memory": openMemory,
	"redis":  openRedis,
}

func TestStore_Contract(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.Get(ctx, "b", "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "b", "k1", []byte(`{"v":1}`)))
			require.NoError(t, s.Set(ctx, "b", "k2", []byte(`{"v":2}`)))
			require.NoError(t, s.Set(ctx, "other", "k1", []byte(`{}`)))

			got, err := s.Get(ctx, "b", "k1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"v":1}`, string(got))

			all, err := s.List(ctx, "b")
			require.NoError(t, err)
			assert.Len(t, all, 2)

			require.NoError(t, s.Set(ctx, "b", "k1", []byte(`{"v":3}`)))
			got, err = s.Get(ctx, "b", "k1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"v":3}`, string(got))

			require.NoError(t, s.Delete(ctx, "b", "k1"))
			assert.ErrorIs(t, s.Delete(ctx, "b", "k1"), ErrNotFound)

			empty, err := s.List(ctx, "nothing")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "b", "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Set(ctx, "b", "k", nil), ErrClosed)

	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Set(ctx, "b", "k", []byte("1")))
	require.NoError(t, s.Close())

	_, err = s.List(ctx, "b")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "b", "k", v))
	v[0] = 'x'

	got, err := s.Get(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRedisStore_PingFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	s := NewRedisStore(RedisOptions{URL: "redis://" + addr + "/0"})
	err := s.Open(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
}

func TestRedisStore_ExistingClientAndPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s := NewRedisStore(RedisOptions{Client: client, Prefix: "test:"})
	require.NoError(t, s.Open(context.Background()))
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), "flows", "f1", []byte(`{}`)))
	assert.True(t, mr.Exists("test:flows"))
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(Options{Backend: "etcd"})
	assert.Error(t, err)

	s, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(Options{Backend: BackendPostgres, DatabaseURL: "postgres://x"})
	require.NoError(t, err)
	assert.IsType(t, &PostgresStore{}, s)
}

func TestPostgresStore_NotOpen(t *testing.T) {
	s := NewPostgresStore("")
	_, err := s.Get(context.Background(), "b", "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, s.Close())
}

func TestFlowStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	runs := NewRunStore(s, 0)
	flows := NewFlowStore(s, runs)

	f := &domain.Flow{Name: "Daily report"}
	require.NoError(t, flows.Create(ctx, f))
	assert.NotEmpty(t, f.ID)
	assert.Equal(t, domain.FlowStatusDraft, f.Status)
	assert.False(t, f.CreatedAt.IsZero())
	assert.NotNil(t, f.Nodes)

	assert.ErrorIs(t, flows.Create(ctx, &domain.Flow{ID: f.ID}), ErrAlreadyExists)

	got, err := flows.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Daily report", got.Name)

	name := "Weekly report"
	active := domain.FlowStatusActive
	updated, err := flows.Update(ctx, f.ID, FlowPatch{Name: &name, Status: &active})
	require.NoError(t, err)
	assert.Equal(t, "Weekly report", updated.Name)
	assert.Equal(t, domain.FlowStatusActive, updated.Status)

	bad := domain.FlowStatus("bogus")
	_, err = flows.Update(ctx, f.ID, FlowPatch{Status: &bad})
	assert.Error(t, err)

	_, err = flows.Update(ctx, "missing", FlowPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, flows.Delete(ctx, f.ID))
	_, err = flows.Get(ctx, f.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, flows.Delete(ctx, f.ID), ErrNotFound)
}

func TestFlowStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	flows := NewFlowStore(openMemory(t), nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, flows.Create(ctx, &domain.Flow{
			ID:        fmt.Sprintf("f%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	list, err := flows.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "f2", list[0].ID)
	assert.Equal(t, "f0", list[2].ID)
}

func TestFlowStore_Duplicate(t *testing.T) {
	ctx := context.Background()
	flows := NewFlowStore(openMemory(t), nil)

	src := &domain.Flow{
		Name:   "Sync",
		Status: domain.FlowStatusActive,
		Nodes:  []domain.FlowNode{{ID: "t", Kind: "manual-trigger"}},
	}
	require.NoError(t, flows.Create(ctx, src))

	cp, err := flows.Duplicate(ctx, src.ID)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, cp.ID)
	assert.Equal(t, "Sync (Copy)", cp.Name)
	assert.Equal(t, domain.FlowStatusDraft, cp.Status)
	assert.Len(t, cp.Nodes, 1)

	_, err = flows.Duplicate(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlowStore_DeleteCascadesRuns(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	runs := NewRunStore(s, 0)
	flows := NewFlowStore(s, runs)

	f := &domain.Flow{Name: "x"}
	require.NoError(t, flows.Create(ctx, f))
	require.NoError(t, runs.Create(ctx, newRun("r1", f.ID, time.Now())))
	require.NoError(t, runs.Create(ctx, newRun("r2", "other", time.Now())))

	require.NoError(t, flows.Delete(ctx, f.ID))

	left, err := runs.List(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "r2", left[0].ID)
}

func newRun(id, flowID string, createdAt time.Time) *domain.Run {
	return &domain.Run{
		ID:          id,
		FlowID:      flowID,
		Status:      domain.RunStatusRunning,
		TriggerType: domain.TriggerManual,
		Logs:        []domain.LogEntry{},
		StartedAt:   createdAt,
		CreatedAt:   createdAt,
	}
}

func TestRunStore_RetentionEvictsOldest(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			runs := NewRunStore(open(t), 3)
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

			for i := 0; i < 5; i++ {
				require.NoError(t, runs.Create(ctx, newRun(fmt.Sprintf("r%d", i), "f", base.Add(time.Duration(i)*time.Minute))))
			}

			list, err := runs.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"r4", "r3", "r2"}, []string{list[0].ID, list[1].ID, list[2].ID})

			_, err = runs.Get(ctx, "r0")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRunStore_Update(t *testing.T) {
	ctx := context.Background()
	runs := NewRunStore(openMemory(t), 0)
	assert.Equal(t, DefaultRunHistoryLimit, runs.Limit())

	r := newRun("r1", "f", time.Now())
	assert.ErrorIs(t, runs.Update(ctx, r), ErrNotFound)

	require.NoError(t, runs.Create(ctx, r))
	assert.ErrorIs(t, runs.Create(ctx, r), ErrAlreadyExists)

	require.NoError(t, r.MarkFailed(r.StartedAt.Add(time.Second), "boom"))
	require.NoError(t, runs.Update(ctx, r))

	got, err := runs.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
	require.NotNil(t, got.DurationMs)
	assert.Equal(t, int64(1000), *got.DurationMs)
}

// pausingStore останавливает первое чтение run с ключом key,
// пока тест не закроет release.
type pausingStore struct {
	Store
	key     string
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *pausingStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	b, err := s.Store.Get(ctx, bucket, key)
	if bucket == BucketRuns && key == s.key {
		s.once.Do(func() {
			close(s.reached)
			<-s.release
		})
	}
	return b, err
}

func TestRunStore_UpdateDoesNotResurrectEvictedRun(t *testing.T) {
	ctx := context.Background()
	ps := &pausingStore{
		Store:   openMemory(t),
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
	runs := NewRunStore(ps, 3)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, runs.Create(ctx, newRun(fmt.Sprintf("r%d", i), "f", base.Add(time.Duration(i)*time.Minute))))
	}

	ps.key = "r0"

	oldest := newRun("r0", "f", base)
	require.NoError(t, oldest.MarkSucceeded(base.Add(time.Second)))

	var wg sync.WaitGroup
	var updateErr, createErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		updateErr = runs.Update(ctx, oldest)
	}()
	<-ps.reached

	// Create вытесняет r0, пока Update держит его между чтением и записью.
	go func() {
		defer wg.Done()
		createErr = runs.Create(ctx, newRun("r3", "f", base.Add(3*time.Minute)))
	}()
	time.Sleep(50 * time.Millisecond)
	close(ps.release)
	wg.Wait()

	require.NoError(t, updateErr)
	require.NoError(t, createErr)

	list, err := runs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	_, err = runs.Get(ctx, "r0")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunStore_ListByFlow(t *testing.T) {
	ctx := context.Background()
	runs := NewRunStore(openMemory(t), 0)
	now := time.Now()

	require.NoError(t, runs.Create(ctx, newRun("a1", "a", now)))
	require.NoError(t, runs.Create(ctx, newRun("b1", "b", now.Add(time.Second))))
	require.NoError(t, runs.Create(ctx, newRun("a2", "a", now.Add(2*time.Second))))

	list, err := runs.ListByFlow(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a2", list[0].ID)

	n, err := runs.DeleteByFlow(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, runs.Delete(ctx, "b1"))
	assert.ErrorIs(t, runs.Delete(ctx, "b1"), ErrNotFound)
}

func TestRunStore_RequiresID(t *testing.T) {
	runs := NewRunStore(openMemory(t), 0)
	assert.Error(t, runs.Create(context.Background(), &domain.Run{}))
}
