package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/me/ecswait/internal/lister"
	"github.com/me/ecswait/internal/store"
	"github.com/me/ecswait/pkg/model"
)

// testSetup creates an in-memory store and a Loop backed by l whose clock
// is controlled through the returned pointer.
func testSetup(t *testing.T, l lister.TaskLister) (*Loop, store.Store, *time.Time) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	loop := NewLoop(st, l, DefaultConfig(), logger)
	loop.now = func() time.Time { return now }
	return loop, st, &now
}

// createWait persists a WAITING wait for cluster created at createdAt.
func createWait(t *testing.T, st store.Store, cluster string, interval, timeout time.Duration, softFail bool, createdAt time.Time) string {
	t.Helper()
	filter, err := model.NewQueryFilter(cluster, nil)
	if err != nil {
		t.Fatalf("NewQueryFilter: %v", err)
	}
	w := &model.Wait{
		ID:        "wait_" + uuid.New().String(),
		Cluster:   cluster,
		Filter:    filter,
		State:     model.WaitStateWaiting,
		Interval:  interval,
		Timeout:   timeout,
		SoftFail:  softFail,
		Labels:    map[string]string{},
		CreatedAt: createdAt,
	}
	if err := st.CreateWait(context.Background(), w); err != nil {
		t.Fatalf("CreateWait: %v", err)
	}
	return w.ID
}

func getWait(t *testing.T, st store.Store, id string) *model.Wait {
	t.Helper()
	w, err := st.GetWait(context.Background(), id)
	if err != nil {
		t.Fatalf("GetWait: %v", err)
	}
	if w == nil {
		t.Fatalf("wait %s not found", id)
	}
	return w
}

func TestTick_EmptyClusterCompletes(t *testing.T) {
	sched, st, now := testSetup(t, lister.Static{TaskIDs: []string{}})
	id := createWait(t, st, "grp-1", time.Minute, time.Hour, false, *now)

	if err := sched.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	w := getWait(t, st, id)
	if w.State != model.WaitStateCompleted {
		t.Errorf("State = %s, want COMPLETED", w.State)
	}
	if w.Polls != 1 || w.LastCount != 0 {
		t.Errorf("polls=%d last_count=%d", w.Polls, w.LastCount)
	}
	if w.CompletedAt == nil || w.LastPolledAt == nil {
		t.Error("CompletedAt and LastPolledAt should be set")
	}
}

func TestTick_PendingThenComplete(t *testing.T) {
	seq := lister.NewSequence(
		lister.Response{TaskIDs: []string{"t1", "t2"}},
		lister.Response{TaskIDs: []string{}},
	)
	sched, st, now := testSetup(t, seq)
	ctx := context.Background()
	id := createWait(t, st, "grp-1", time.Minute, time.Hour, false, *now)

	if err := sched.Tick(ctx); err != nil {
		t.Fatalf("Tick 1: %v", err)
	}
	w := getWait(t, st, id)
	if w.State != model.WaitStateWaiting || w.LastCount != 2 {
		t.Fatalf("after tick 1: state=%s last_count=%d", w.State, w.LastCount)
	}

	// Not due yet: the interval has not elapsed.
	*now = now.Add(30 * time.Second)
	if err := sched.Tick(ctx); err != nil {
		t.Fatalf("Tick 2: %v", err)
	}
	if got := len(seq.Calls()); got != 1 {
		t.Fatalf("lister calls = %d, want 1", got)
	}

	*now = now.Add(30 * time.Second)
	if err := sched.Tick(ctx); err != nil {
		t.Fatalf("Tick 3: %v", err)
	}
	w = getWait(t, st, id)
	if w.State != model.WaitStateCompleted {
		t.Errorf("State = %s, want COMPLETED", w.State)
	}
	if w.Polls != 2 {
		t.Errorf("Polls = %d, want 2", w.Polls)
	}
}

func TestTick_ListerErrorFails(t *testing.T) {
	sched, st, now := testSetup(t, lister.Static{Err: errors.New("AccessDenied")})
	id := createWait(t, st, "grp-1", time.Minute, time.Hour, false, *now)

	if err := sched.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	w := getWait(t, st, id)
	if w.State != model.WaitStateFailed {
		t.Errorf("State = %s, want FAILED", w.State)
	}
	if !strings.Contains(w.Error, "AccessDenied") || !strings.Contains(w.Error, "grp-1") {
		t.Errorf("Error = %q", w.Error)
	}
}

func TestTick_Timeout(t *testing.T) {
	tests := []struct {
		name     string
		softFail bool
		want     model.WaitState
	}{
		{"hard", false, model.WaitStateTimedOut},
		{"soft", true, model.WaitStateSkipped},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, st, now := testSetup(t, lister.Static{TaskIDs: []string{"t1"}})
			ctx := context.Background()
			id := createWait(t, st, "grp-1", 5*time.Second, 12*time.Second, tt.softFail, *now)

			// t=0 and t=5 stay pending; at t=10 the next poll (t=15) passes the deadline.
			for i := 0; i < 3; i++ {
				if err := sched.Tick(ctx); err != nil {
					t.Fatalf("Tick %d: %v", i, err)
				}
				*now = now.Add(5 * time.Second)
			}

			w := getWait(t, st, id)
			if w.State != tt.want {
				t.Errorf("State = %s, want %s", w.State, tt.want)
			}
			if w.Polls != 3 {
				t.Errorf("Polls = %d, want 3", w.Polls)
			}
			if !strings.Contains(w.Error, "timed out") {
				t.Errorf("Error = %q", w.Error)
			}
		})
	}
}

func TestTick_NoTimeoutKeepsWaiting(t *testing.T) {
	sched, st, now := testSetup(t, lister.Static{TaskIDs: []string{"t1"}})
	ctx := context.Background()
	id := createWait(t, st, "grp-1", time.Second, 0, false, *now)

	for i := 0; i < 10; i++ {
		if err := sched.Tick(ctx); err != nil {
			t.Fatalf("Tick %d: %v", i, err)
		}
		*now = now.Add(time.Hour)
	}

	w := getWait(t, st, id)
	if w.State != model.WaitStateWaiting || w.Polls != 10 {
		t.Errorf("state=%s polls=%d, want WAITING/10", w.State, w.Polls)
	}
}

func TestTick_SkipsTerminalWaits(t *testing.T) {
	seq := lister.NewSequence(lister.Response{TaskIDs: []string{}})
	sched, st, now := testSetup(t, seq)
	ctx := context.Background()
	id := createWait(t, st, "grp-1", time.Minute, time.Hour, false, *now)

	w := getWait(t, st, id)
	w.State = model.WaitStateCancelled
	w.CompletedAt = now
	if err := st.UpdateWait(ctx, w, model.WaitStateWaiting); err != nil {
		t.Fatalf("UpdateWait: %v", err)
	}

	if err := sched.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if len(seq.Calls()) != 0 {
		t.Errorf("cancelled wait was polled")
	}
}

func TestTick_CancelDuringCheck(t *testing.T) {
	var st store.Store
	var id string
	cancelling := lister.Func(func(ctx context.Context, _ model.QueryFilter) ([]string, error) {
		w, err := st.GetWait(ctx, id)
		if err != nil {
			return nil, err
		}
		w.State = model.WaitStateCancelled
		if err := st.UpdateWait(ctx, w, model.WaitStateWaiting); err != nil {
			return nil, err
		}
		return []string{}, nil
	})
	sched, s, now := testSetup(t, cancelling)
	st = s
	id = createWait(t, st, "grp-1", time.Minute, time.Hour, false, *now)

	if err := sched.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if w := getWait(t, st, id); w.State != model.WaitStateCancelled {
		t.Errorf("State = %s, want CANCELLED", w.State)
	}
}

// cancelBeforeWrite cancels the target wait right before the first write
// to it is applied, after the scheduler has finished its check.
type cancelBeforeWrite struct {
	store.Store
	target string
	done   bool
}

func (c *cancelBeforeWrite) UpdateWait(ctx context.Context, w *model.Wait, expected model.WaitState) error {
	if w.ID == c.target && !c.done {
		c.done = true
		current, err := c.Store.GetWait(ctx, w.ID)
		if err != nil {
			return err
		}
		current.State = model.WaitStateCancelled
		if err := c.Store.UpdateWait(ctx, current, model.WaitStateWaiting); err != nil {
			return err
		}
	}
	return c.Store.UpdateWait(ctx, w, expected)
}

func TestTick_CancelBeforeWriteIsKept(t *testing.T) {
	for _, tt := range []struct {
		name string
		l    lister.TaskLister
	}{
		{"complete", lister.Static{TaskIDs: []string{}}},
		{"pending", lister.Static{TaskIDs: []string{"t1"}}},
		{"failed", lister.Func(func(context.Context, model.QueryFilter) ([]string, error) {
			return nil, errors.New("boom")
		})},
	} {
		t.Run(tt.name, func(t *testing.T) {
			sched, st, now := testSetup(t, tt.l)
			id := createWait(t, st, "grp-1", time.Minute, time.Hour, false, *now)
			sched.store = &cancelBeforeWrite{Store: st, target: id}

			if err := sched.Tick(context.Background()); err != nil {
				t.Fatalf("Tick: %v", err)
			}
			w := getWait(t, st, id)
			if w.State != model.WaitStateCancelled {
				t.Errorf("State = %s, want CANCELLED", w.State)
			}
			if w.Polls != 0 {
				t.Errorf("Polls = %d, want the cancelled row untouched", w.Polls)
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	sched, _, _ := testSetup(t, lister.Static{})
	sched.config.TickInterval = 10 * time.Millisecond

	errCh := make(chan error, 1)
	go func() { errCh <- sched.Start(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	if err := sched.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Start returned %v, want nil", err)
	}
}

func TestStart_ContextCancel(t *testing.T) {
	sched, _, _ := testSetup(t, lister.Static{})
	sched.config.TickInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sched.Start(ctx) }()

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Start returned %v, want context.Canceled", err)
	}
}
