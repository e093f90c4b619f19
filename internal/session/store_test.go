package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"bff-service/internal/auth"
)

// harness wires a store to a controllable clock.
type harness struct {
	store   Store
	advance func(time.Duration)
	now     func() time.Time
}

func newMemoryHarness(t *testing.T) *harness {
	t.Helper()

	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	return &harness{
		store: NewMemoryStore().WithClock(clock),
		advance: func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
		},
		now: clock,
	}
}

func newRedisHarness(t *testing.T) (*harness, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	return &harness{
		store: NewRedisStore(client).WithClock(clock),
		advance: func(d time.Duration) {
			mu.Lock()
			now = now.Add(d)
			mu.Unlock()
			mr.FastForward(d)
		},
		now: clock,
	}, mr
}

func owner(id string) auth.Identity {
	return auth.Identity{ID: id, Email: id + "@x.com", Provider: auth.ProviderGoogle}
}

func TestStoreContract(t *testing.T) {
	impls := map[string]func(t *testing.T) *harness{
		"memory": newMemoryHarness,
		"redis": func(t *testing.T) *harness {
			h, _ := newRedisHarness(t)
			return h
		},
	}

	for name, newHarness := range impls {
		t.Run(name, func(t *testing.T) {
			t.Run("create then get", func(t *testing.T) {
				h := newHarness(t)
				ctx := context.Background()

				s, err := h.store.Create(ctx, owner("u1"), h.now().Add(time.Hour))
				if err != nil {
					t.Fatalf("Create: %v", err)
				}
				if len(s.ID) < 40 {
					t.Fatalf("session id too short: %q", s.ID)
				}

				got, err := h.store.Get(ctx, s.ID)
				if err != nil {
					t.Fatalf("Get: %v", err)
				}
				if got == nil || got.OwnerID != "u1" || got.Identity.Email != "u1@x.com" {
					t.Fatalf("unexpected session: %+v", got)
				}
			})

			t.Run("ids are unique", func(t *testing.T) {
				h := newHarness(t)
				ctx := context.Background()

				seen := make(map[string]bool)
				for i := 0; i < 50; i++ {
					s, err := h.store.Create(ctx, owner("u1"), h.now().Add(time.Hour))
					if err != nil {
						t.Fatalf("Create: %v", err)
					}
					if seen[s.ID] {
						t.Fatalf("duplicate id %q", s.ID)
					}
					seen[s.ID] = true
				}
			})

			t.Run("missing owner id", func(t *testing.T) {
				h := newHarness(t)
				if _, err := h.store.Create(context.Background(), auth.Identity{}, h.now().Add(time.Hour)); err == nil {
					t.Fatal("expected error")
				}
			})

			t.Run("get missing", func(t *testing.T) {
				h := newHarness(t)
				got, err := h.store.Get(context.Background(), "nope")
				if err != nil || got != nil {
					t.Fatalf("Get missing = %+v, %v", got, err)
				}
			})

			t.Run("delete is idempotent", func(t *testing.T) {
				h := newHarness(t)
				ctx := context.Background()

				s, err := h.store.Create(ctx, owner("u1"), h.now().Add(time.Hour))
				if err != nil {
					t.Fatalf("Create: %v", err)
				}

				first, err := h.store.Delete(ctx, s.ID)
				if err != nil || !first {
					t.Fatalf("first Delete = %v, %v", first, err)
				}
				second, err := h.store.Delete(ctx, s.ID)
				if err != nil || second {
					t.Fatalf("second Delete = %v, %v", second, err)
				}
				got, err := h.store.Get(ctx, s.ID)
				if err != nil || got != nil {
					t.Fatalf("Get after delete = %+v, %v", got, err)
				}
			})

			t.Run("created already expired", func(t *testing.T) {
				h := newHarness(t)
				ctx := context.Background()

				s, err := h.store.Create(ctx, owner("u1"), h.now().Add(-time.Minute))
				if err != nil {
					t.Fatalf("Create: %v", err)
				}
				got, err := h.store.Get(ctx, s.ID)
				if err != nil || got != nil {
					t.Fatalf("Get expired = %+v, %v", got, err)
				}
			})

			t.Run("expires without sweep", func(t *testing.T) {
				h := newHarness(t)
				ctx := context.Background()

				s, err := h.store.Create(ctx, owner("u1"), h.now().Add(time.Minute))
				if err != nil {
					t.Fatalf("Create: %v", err)
				}
				h.advance(time.Minute)

				got, err := h.store.Get(ctx, s.ID)
				if err != nil || got != nil {
					t.Fatalf("Get after expiry = %+v, %v", got, err)
				}
				deleted, err := h.store.Delete(ctx, s.ID)
				if err != nil || deleted {
					t.Fatalf("Delete after expiry = %v, %v", deleted, err)
				}
			})

			t.Run("update merges fields", func(t *testing.T) {
				h := newHarness(t)
				ctx := context.Background()

				s, err := h.store.Create(ctx, owner("u1"), h.now().Add(time.Minute))
				if err != nil {
					t.Fatalf("Create: %v", err)
				}

				later := h.now().Add(2 * time.Hour)
				got, err := h.store.Update(ctx, s.ID, Patch{ExpiresAt: &later})
				if err != nil {
					t.Fatalf("Update: %v", err)
				}
				if got == nil || !got.ExpiresAt.Equal(later) || got.OwnerID != "u1" {
					t.Fatalf("unexpected update result: %+v", got)
				}

				h.advance(90 * time.Second)
				again, err := h.store.Get(ctx, s.ID)
				if err != nil || again == nil {
					t.Fatalf("extended session should survive: %+v, %v", again, err)
				}
				if !again.CreatedAt.Equal(s.CreatedAt) {
					t.Fatalf("created_at changed: %v -> %v", s.CreatedAt, again.CreatedAt)
				}
			})

			t.Run("update missing", func(t *testing.T) {
				h := newHarness(t)
				later := h.now().Add(time.Hour)
				got, err := h.store.Update(context.Background(), "nope", Patch{ExpiresAt: &later})
				if err != nil || got != nil {
					t.Fatalf("Update missing = %+v, %v", got, err)
				}
			})

			t.Run("delete all for owner", func(t *testing.T) {
				h := newHarness(t)
				ctx := context.Background()

				a, _ := h.store.Create(ctx, owner("u1"), h.now().Add(time.Hour))
				b, _ := h.store.Create(ctx, owner("u1"), h.now().Add(time.Hour))
				c, _ := h.store.Create(ctx, owner("u2"), h.now().Add(time.Hour))

				ok, err := h.store.DeleteAllForOwner(ctx, "u1")
				if err != nil || !ok {
					t.Fatalf("DeleteAllForOwner = %v, %v", ok, err)
				}
				for _, id := range []string{a.ID, b.ID} {
					if got, _ := h.store.Get(ctx, id); got != nil {
						t.Fatalf("session %s should be gone", id)
					}
				}
				if got, _ := h.store.Get(ctx, c.ID); got == nil {
					t.Fatal("other owner's session must survive")
				}

				ok, err = h.store.DeleteAllForOwner(ctx, "u1")
				if err != nil || ok {
					t.Fatalf("second DeleteAllForOwner = %v, %v", ok, err)
				}
			})

			t.Run("delete all for owner ignores expired sessions", func(t *testing.T) {
				h := newHarness(t)
				ctx := context.Background()

				if _, err := h.store.Create(ctx, owner("u1"), h.now().Add(time.Second)); err != nil {
					t.Fatalf("Create: %v", err)
				}
				h.advance(time.Minute)

				ok, err := h.store.DeleteAllForOwner(ctx, "u1")
				if err != nil || ok {
					t.Fatalf("DeleteAllForOwner = %v, %v; nothing live to revoke", ok, err)
				}
			})

			t.Run("sweep expired", func(t *testing.T) {
				h := newHarness(t)
				ctx := context.Background()

				short, _ := h.store.Create(ctx, owner("u1"), h.now().Add(time.Minute))
				_, _ = h.store.Create(ctx, owner("u2"), h.now().Add(time.Minute))
				long, _ := h.store.Create(ctx, owner("u1"), h.now().Add(time.Hour))
				h.advance(2 * time.Minute)

				n, err := h.store.SweepExpired(ctx)
				if err != nil {
					t.Fatalf("SweepExpired: %v", err)
				}
				if n != 2 {
					t.Fatalf("swept %d, want 2", n)
				}
				if got, _ := h.store.Get(ctx, short.ID); got != nil {
					t.Fatal("expired session still readable")
				}
				if got, _ := h.store.Get(ctx, long.ID); got == nil {
					t.Fatal("live session swept")
				}

				n, err = h.store.SweepExpired(ctx)
				if err != nil || n != 0 {
					t.Fatalf("second sweep = %d, %v", n, err)
				}
			})

			t.Run("concurrent deletes have one winner", func(t *testing.T) {
				h := newHarness(t)
				ctx := context.Background()

				s, err := h.store.Create(ctx, owner("u1"), h.now().Add(time.Hour))
				if err != nil {
					t.Fatalf("Create: %v", err)
				}

				var (
					wg   sync.WaitGroup
					mu   sync.Mutex
					wins int
				)
				for i := 0; i < 8; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						ok, err := h.store.Delete(ctx, s.ID)
						if err != nil {
							t.Errorf("Delete: %v", err)
							return
						}
						if ok {
							mu.Lock()
							wins++
							mu.Unlock()
						}
					}()
				}
				wg.Wait()

				if wins != 1 {
					t.Fatalf("wins = %d, want 1", wins)
				}
			})
		})
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	h, mr := newRedisHarness(t)
	ctx := context.Background()

	s, err := h.store.Create(ctx, owner("u1"), h.now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	mr.Close()

	if _, err := h.store.Get(ctx, s.ID); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Get: want ErrUnavailable, got %v", err)
	}
	if _, err := h.store.Create(ctx, owner("u1"), h.now().Add(time.Hour)); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Create: want ErrUnavailable, got %v", err)
	}
	if _, err := h.store.Delete(ctx, s.ID); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Delete: want ErrUnavailable, got %v", err)
	}
	later := h.now().Add(2 * time.Hour)
	if _, err := h.store.Update(ctx, s.ID, Patch{ExpiresAt: &later}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Update: want ErrUnavailable, got %v", err)
	}
	if _, err := h.store.SweepExpired(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("SweepExpired: want ErrUnavailable, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.Create(ctx, owner("u1"), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s.OwnerID = "tampered"

	got, _ := store.Get(ctx, s.ID)
	if got.OwnerID != "u1" {
		t.Fatalf("store leaked internal pointer: %+v", got)
	}
}

func TestSweeperRunOnce(t *testing.T) {
	h := newMemoryHarness(t)
	ctx := context.Background()

	_, _ = h.store.Create(ctx, owner("u1"), h.now().Add(time.Second))
	h.advance(time.Minute)

	var reported int
	sw := NewSweeper(h.store, time.Hour, func(n int) { reported = n })
	if n := sw.RunOnce(ctx); n != 1 || reported != 1 {
		t.Fatalf("RunOnce = %d, reported %d", n, reported)
	}
}

func TestSweeperStartStop(t *testing.T) {
	h := newMemoryHarness(t)
	ctx := context.Background()

	_, _ = h.store.Create(ctx, owner("u1"), h.now().Add(time.Second))
	h.advance(time.Minute)

	swept := make(chan int, 4)
	sw := NewSweeper(h.store, 5*time.Millisecond, func(n int) {
		select {
		case swept <- n:
		default:
		}
	})
	sw.Start(ctx)

	select {
	case n := <-swept:
		if n != 1 {
			t.Fatalf("first sweep removed %d, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}

	sw.Stop()
	sw.Stop()
}

func TestSweeperStopWithoutStart(t *testing.T) {
	sw := NewSweeper(NewMemoryStore(), time.Second, nil)
	sw.Stop()
}

type expirerFunc func(ctx context.Context) (int, error)

func (f expirerFunc) SweepExpired(ctx context.Context) (int, error) { return f(ctx) }

func TestSweeperSwallowsErrors(t *testing.T) {
	called := false
	sw := NewSweeper(expirerFunc(func(context.Context) (int, error) {
		return 0, ErrUnavailable
	}), time.Hour, func(int) { called = true })

	if n := sw.RunOnce(context.Background()); n != 0 {
		t.Fatalf("RunOnce = %d, want 0", n)
	}
	if called {
		t.Error("onSweep must not run for a failed pass")
	}
}

// interleaveHook runs fn once, right after the first SMEMBERS reply.
type interleaveHook struct {
	once sync.Once
	fn   func()
}

func (h *interleaveHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *interleaveHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if cmd.Name() == "smembers" {
			h.once.Do(h.fn)
		}
		return err
	}
}

func (h *interleaveHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisDeleteAllForOwnerRacingCreate(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	otherClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		_ = otherClient.Close()
	})
	store := NewRedisStore(client)
	other := NewRedisStore(otherClient)

	if _, err := store.Create(ctx, owner("u1"), time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	var late *Session
	client.AddHook(&interleaveHook{fn: func() {
		var err error
		late, err = other.Create(ctx, owner("u1"), time.Now().Add(time.Hour))
		if err != nil {
			t.Errorf("concurrent Create: %v", err)
		}
	}})

	ok, err := store.DeleteAllForOwner(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("DeleteAllForOwner = %v, %v", ok, err)
	}
	if late == nil {
		t.Fatal("concurrent Create never ran")
	}
	if got, err := store.Get(ctx, late.ID); err != nil || got != nil {
		t.Fatalf("session created mid-call survived: %+v, %v", got, err)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("leftover keys %v", keys)
	}
}
