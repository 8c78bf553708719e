package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/espritforge/internal/platform/random"
	"github.com/louisbranch/espritforge/internal/services/forge/audit"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/element"
	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
	"github.com/louisbranch/espritforge/internal/services/forge/storage"
	"github.com/louisbranch/espritforge/internal/services/forge/storage/memory"
)

var testNow = time.Date(2026, time.April, 2, 18, 0, 0, 0, time.UTC)

// testBases leaves tier 2 verdant and tier 2 abyssal empty.
var testBases = []esprit.Base{
	{ID: "cinder", Name: "Cinder", Element: element.Inferno, Tier: 1, BaseAttack: 50, BaseDefense: 40, BaseHP: 400},
	{ID: "moss", Name: "Moss", Element: element.Verdant, Tier: 1, BaseAttack: 48, BaseDefense: 42, BaseHP: 410},
	{ID: "tide", Name: "Tide", Element: element.Abyssal, Tier: 1, BaseAttack: 46, BaseDefense: 44, BaseHP: 420},
	{ID: "ember", Name: "Ember", Element: element.Inferno, Tier: 2, BaseAttack: 80, BaseDefense: 65, BaseHP: 650},
	{ID: "gale", Name: "Gale", Element: element.Tempest, Tier: 2, BaseAttack: 82, BaseDefense: 60, BaseHP: 640},
	{ID: "pyre", Name: "Pyre", Element: element.Inferno, Tier: 3, BaseAttack: 120, BaseDefense: 100, BaseHP: 1000},
	{ID: "kiln", Name: "Kiln", Element: element.Inferno, Tier: 3, BaseAttack: 118, BaseDefense: 102, BaseHP: 990},
	{ID: "blaze", Name: "Blaze", Element: element.Inferno, Tier: 4, BaseAttack: 180, BaseDefense: 150, BaseHP: 1500},
	{ID: "forge", Name: "Forge", Element: element.Inferno, Tier: 4, BaseAttack: 185, BaseDefense: 145, BaseHP: 1480},
	{ID: "shade", Name: "Shade", Element: element.Umbral, Tier: 5, BaseAttack: 260, BaseDefense: 220, BaseHP: 2200},
	{ID: "halo", Name: "Halo", Element: element.Radiant, Tier: 5, BaseAttack: 255, BaseDefense: 225, BaseHP: 2250},
}

type recordingCache struct {
	mu    sync.Mutex
	power []string
	stats []string
}

func (c *recordingCache) InvalidatePlayerPower(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.power = append(c.power, id)
}

func (c *recordingCache) InvalidateCollectionStats(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = append(c.stats, id)
}

type recordingLog struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (l *recordingLog) Record(_ context.Context, rec audit.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return l.err
}

type fixture struct {
	engine *Engine
	store  storage.Store
	cache  *recordingCache
	log    *recordingLog
}

func newFixture(t *testing.T, store storage.Store, opts ...Option) *fixture {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	if err := store.PutBases(context.Background(), testBases); err != nil {
		t.Fatalf("put bases: %v", err)
	}
	var (
		mu   sync.Mutex
		next int
	)
	f := &fixture{store: store, cache: &recordingCache{}, log: &recordingLog{}}
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			next++
			return fmt.Sprintf("gen-%d", next), nil
		}),
		WithSeedSource(func() (int64, error) { return 1, nil }),
		WithCache(f.cache),
		WithTransactionLog(f.log),
	}
	eng, err := New(store, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	f.engine = eng
	return f
}

func (f *fixture) player(t *testing.T, id string, currency int64, fragments map[esprit.FragmentKey]int) {
	t.Helper()
	err := f.store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		p := esprit.NewPlayer(id, currency, testNow)
		for k, v := range fragments {
			p.SetFragments(k, v)
		}
		return tx.InsertPlayer(ctx, p)
	})
	if err != nil {
		t.Fatalf("insert player: %v", err)
	}
}

func (f *fixture) stack(t *testing.T, id, owner, baseID string, quantity, level int) esprit.Stack {
	t.Helper()
	var base esprit.Base
	for _, b := range testBases {
		if b.ID == baseID {
			base = b
		}
	}
	s := esprit.Stack{
		ID: id, BaseID: base.ID, OwnerID: owner, Quantity: quantity, Tier: base.Tier,
		AwakeningLevel: level, Element: base.Element, CreatedAt: testNow, UpdatedAt: testNow,
	}
	err := f.store.InTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.SaveStack(ctx, s)
	})
	if err != nil {
		t.Fatalf("save stack: %v", err)
	}
	return s
}

func (f *fixture) getPlayer(t *testing.T, id string) esprit.Player {
	t.Helper()
	p, err := f.store.GetPlayer(context.Background(), id)
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	return p
}

func (f *fixture) copies(t *testing.T, owner string) int {
	t.Helper()
	stacks, err := f.store.ListStacks(context.Background(), storage.ListStacksQuery{OwnerID: owner})
	if err != nil {
		t.Fatalf("list stacks: %v", err)
	}
	total := 0
	for _, s := range stacks {
		total += s.Quantity
	}
	return total
}

// findSeed returns the first seed whose draws satisfy want.
func findSeed(t *testing.T, want func(r *random.Roller) bool) int64 {
	t.Helper()
	for seed := int64(1); seed < 10_000; seed++ {
		if want(random.NewRoller(seed)) {
			return seed
		}
	}
	t.Fatal("no seed found")
	return 0
}

func seedPtr(v int64) *int64 { return &v }
