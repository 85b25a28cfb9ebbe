package profile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/skillflow/internal/formula"
	"github.com/udisondev/skillflow/internal/stat"
)

type memRepo struct {
	mu      sync.Mutex
	records map[string]Record
	loadErr error
	saveErr error
	gate    chan struct{}
	loads   atomic.Int32
}

func newMemRepo(records ...Record) *memRepo {
	r := &memRepo{records: map[string]Record{}}
	for _, rec := range records {
		r.records[rec.ID] = rec
	}
	return r
}

func (r *memRepo) Load(ctx context.Context, id string) (Record, error) {
	r.loads.Add(1)
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return Record{}, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return Record{}, r.loadErr
	}
	rec, ok := r.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *memRepo) Save(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records[rec.ID] = rec.Clone()
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *memRepo) get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

func newStats(t *testing.T) *stat.Engine {
	t.Helper()
	ev, err := formula.NewEvaluator()
	require.NoError(t, err)
	e := stat.NewEngine(ev)
	require.NoError(t, e.Define(
		stat.Definition{ID: "strength"},
		stat.Definition{ID: "attack", Kind: stat.KindFormula, Formula: "value + strength * 2"},
	))
	require.NoError(t, e.DefineRole(stat.Role{Name: "warrior", Stats: map[string]stat.RoleStat{
		"strength": {Base: 10, PerLevel: 1},
	}}))
	return e
}

// load pushes one synchronous load through the queue and drains it.
func load(t *testing.T, m *Manager, id string) *Profile {
	t.Helper()
	p := m.Acquire(id)
	select {
	case req := <-m.loader.requests:
		require.Equal(t, id, req)
	default:
		t.Fatalf("no load request queued for %s", id)
	}
	m.loader.push(m.loader.Load(context.Background(), id))
	m.Drain(context.Background(), 0)
	return p
}

func TestProfile_NotReadyUntilDrained(t *testing.T) {
	stats := newStats(t)
	repo := newMemRepo(Record{ID: "p1", Name: "Aria", Level: 3, Stats: map[string]float64{"strength": 5}})
	m := NewManager(repo, stats, 2)

	p := m.Acquire("p1")
	assert.False(t, p.Ready())
	assert.Zero(t, stats.Resolve(p, "strength"), "not-ready subjects contribute nothing")
	assert.Same(t, p, m.Acquire("p1"), "second acquire reuses the profile")

	<-m.loader.requests
	m.loader.push(m.loader.Load(context.Background(), "p1"))
	m.Drain(context.Background(), 7)

	require.True(t, p.Ready())
	assert.Equal(t, "Aria", p.DisplayName())
	assert.Equal(t, 3, p.Level())
	assert.Equal(t, 5.0, stats.Resolve(p, "strength"))
	assert.False(t, p.Dirty())
}

func TestProfile_FreshProfileIsDirty(t *testing.T) {
	repo := newMemRepo()
	m := NewManager(repo, nil, 1)

	p := load(t, m, "new")
	require.True(t, p.Ready())
	assert.True(t, p.Dirty())
	assert.Equal(t, 1, p.Level())
	assert.Equal(t, "new", p.DisplayName())

	require.NoError(t, m.Flush(context.Background()))
	rec, ok := repo.get("new")
	require.True(t, ok)
	assert.Equal(t, 1, rec.Level)
	assert.False(t, rec.UpdatedAt.IsZero())
	assert.False(t, p.Dirty())
}

func TestProfile_LoadFailureReleases(t *testing.T) {
	repo := newMemRepo()
	repo.loadErr = errors.New("connection refused")
	m := NewManager(repo, nil, 1)

	m.Acquire("p1")
	<-m.loader.requests
	res := m.loader.Load(context.Background(), "p1")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "connection refused")

	m.loader.push(res)
	m.Drain(context.Background(), 1)
	_, ok := m.Get("p1")
	assert.False(t, ok)
}

func TestProfile_MutatorsInvalidateAndMarkDirty(t *testing.T) {
	stats := newStats(t)
	repo := newMemRepo(Record{ID: "p1", Level: 1, Stats: map[string]float64{"strength": 1}})
	m := NewManager(repo, stats, 1)
	p := load(t, m, "p1")

	assert.Equal(t, 2.0, stats.Resolve(p, "attack"))
	p.SetStat("strength", 4)
	assert.True(t, p.Dirty())
	assert.Equal(t, 8.0, stats.Resolve(p, "attack"))

	p.SetRoles([]stat.RoleAssignment{{Role: "warrior", Weight: 1}})
	assert.Equal(t, 14.0, stats.Resolve(p, "strength"))

	p.SetLevel(3)
	assert.Equal(t, 16.0, stats.Resolve(p, "strength"))

	p.SetEquipment("strength", 2)
	assert.Equal(t, 18.0, stats.Resolve(p, "strength"))
	p.SetEquipment("strength", 0)
	assert.Equal(t, 16.0, stats.Resolve(p, "strength"))

	p.SetLevel(-4)
	assert.Equal(t, 1, p.Level())

	require.NoError(t, m.Flush(context.Background()))
	rec, _ := repo.get("p1")
	assert.Equal(t, 4.0, rec.Stats["strength"])
	assert.Equal(t, []stat.RoleAssignment{{Role: "warrior", Weight: 1}}, rec.Roles)
}

func TestProfile_FlushErrorKeepsDirty(t *testing.T) {
	repo := newMemRepo(Record{ID: "a"}, Record{ID: "b"})
	m := NewManager(repo, nil, 2)
	a := load(t, m, "a")
	b := load(t, m, "b")
	a.SetStat("x", 1)
	b.SetStat("x", 2)

	repo.saveErr = errors.New("disk full")
	err := m.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "saving profile a")
	assert.Contains(t, err.Error(), "saving profile b")
	assert.True(t, a.Dirty())
	assert.True(t, b.Dirty())

	repo.saveErr = nil
	require.NoError(t, m.Flush(context.Background()))
	assert.False(t, a.Dirty())
}

func TestProfile_ReleasedWhileLoading(t *testing.T) {
	repo := newMemRepo(Record{ID: "p1"})
	m := NewManager(repo, nil, 1)

	p := m.Acquire("p1")
	<-m.loader.requests
	_, ok := m.Release("p1")
	require.True(t, ok)

	m.loader.push(m.loader.Load(context.Background(), "p1"))
	m.Drain(context.Background(), 0)
	assert.False(t, p.Ready())
	assert.Zero(t, m.Len())
}

func TestLoader_CollapsesConcurrentLoads(t *testing.T) {
	repo := newMemRepo(Record{ID: "p1", Name: "Aria"})
	repo.gate = make(chan struct{})
	l := NewLoader(repo, 4)

	var wg sync.WaitGroup
	results := make([]LoadResult, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = l.Load(context.Background(), "p1")
		}()
	}

	require.Eventually(t, func() bool { return repo.loads.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, "Aria", r.Record.Name)
	}
	assert.LessOrEqual(t, repo.loads.Load(), int32(5))
	assert.Equal(t, uint64(repo.loads.Load()), l.Loads())
}

func TestLoader_RunProcessesQueue(t *testing.T) {
	repo := newMemRepo(Record{ID: "a"}, Record{ID: "b"})
	m := NewManager(repo, nil, 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	a := m.Acquire("a")
	b := m.Acquire("b")
	require.Eventually(t, func() bool { return m.loader.Pending() == 2 }, 2*time.Second, time.Millisecond)

	m.Drain(ctx, 1)
	assert.True(t, a.Ready())
	assert.True(t, b.Ready())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("loader did not stop")
	}
}

func TestLoader_RequestQueueFull(t *testing.T) {
	l := NewLoader(newMemRepo(), 1)
	for range requestBuffer {
		require.True(t, l.Request("x"))
	}
	assert.False(t, l.Request("overflow"))
}
