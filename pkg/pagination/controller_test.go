package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/catalog-sync/pkg/catalog"
	"github.com/Sternrassler/catalog-sync/pkg/clock"
	"github.com/Sternrassler/catalog-sync/pkg/filter"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errServer = errors.New("status 500")

// pagedFetcher serves a fixed record list by limit/offset.
type pagedFetcher struct {
	mu       sync.Mutex
	records  []catalog.Record
	total    *int
	failures map[int]int // offset -> remaining failures
	calls    []int       // offsets requested
	limits   []int
}

func newPagedFetcher(n int) *pagedFetcher {
	records := make([]catalog.Record, 0, n)
	for i := 1; i <= n; i++ {
		id := i
		records = append(records, catalog.Record{ID: &id, Name: fmt.Sprintf("record-%03d", i)})
	}
	return &pagedFetcher{records: records, failures: map[int]int{}}
}

func (f *pagedFetcher) FetchPage(_ context.Context, limit, offset int) (catalog.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, offset)
	f.limits = append(f.limits, limit)
	if f.failures[offset] > 0 {
		f.failures[offset]--
		return catalog.Page{}, errServer
	}

	page := catalog.Page{TotalCount: f.total}
	for i := offset; i < offset+limit && i < len(f.records); i++ {
		page.Records = append(page.Records, f.records[i])
	}
	return page, nil
}

func (f *pagedFetcher) offsets() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

type fetchFunc func(ctx context.Context, limit, offset int) (catalog.Page, error)

func (f fetchFunc) FetchPage(ctx context.Context, limit, offset int) (catalog.Page, error) {
	return f(ctx, limit, offset)
}

func newTestController(t *testing.T, fetcher PageFetcher, limit int, clk clock.Clock) *Controller {
	t.Helper()

	nop := zerolog.Nop()
	ctrl, err := NewController(fetcher, Config{
		Limit:         limit,
		RecoveryDelay: 5 * time.Second,
		Clock:         clk,
		Logger:        &nop,
	})
	require.NoError(t, err)
	t.Cleanup(ctrl.Close)
	return ctrl
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not complete")
	}
}

func trigger(t *testing.T, ctrl *Controller) {
	t.Helper()
	done, started := ctrl.Trigger()
	require.True(t, started, "expected a fetch to start")
	waitDone(t, done)
}

func TestNewController_Validation(t *testing.T) {
	_, err := NewController(nil, DefaultConfig())
	assert.Error(t, err)

	_, err = NewController(newPagedFetcher(1), Config{Limit: -1})
	assert.Error(t, err)

	ctrl, err := NewController(newPagedFetcher(1), Config{})
	require.NoError(t, err)
	defer ctrl.Close()

	snap := ctrl.Snapshot()
	assert.Equal(t, DefaultLimit, snap.Limit)
	assert.Equal(t, StateIdle, snap.State)
	assert.True(t, snap.HasMore)
	assert.Zero(t, snap.Offset)
	assert.Nil(t, snap.TotalCount)
}

func TestController_AdvancesThenExhaustsOnShortPage(t *testing.T) {
	fetcher := newPagedFetcher(14)
	ctrl := newTestController(t, fetcher, 10, nil)

	trigger(t, ctrl)
	snap := ctrl.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 10, snap.Offset)
	assert.Equal(t, 10, snap.Size)
	assert.True(t, snap.HasMore)

	trigger(t, ctrl)
	snap = ctrl.Snapshot()
	assert.Equal(t, StateExhausted, snap.State)
	assert.False(t, snap.HasMore)
	assert.Equal(t, 14, snap.Size)
	assert.Equal(t, 10, snap.Offset, "offset does not advance on the final page")

	_, started := ctrl.Trigger()
	assert.False(t, started)
	assert.Equal(t, []int{0, 10}, fetcher.offsets())

	records := ctrl.Records()
	require.Len(t, records, 14)
	assert.Equal(t, "record-001", records[0].Name)
	assert.Equal(t, "record-014", records[13].Name)
}

func TestController_EmptyFirstPageExhausts(t *testing.T) {
	ctrl := newTestController(t, newPagedFetcher(0), 10, nil)

	trigger(t, ctrl)

	snap := ctrl.Snapshot()
	assert.Equal(t, StateExhausted, snap.State)
	assert.Zero(t, snap.Size)
}

func TestController_NoNewRecordsExhausts(t *testing.T) {
	fetcher := fetchFunc(func(_ context.Context, limit, _ int) (catalog.Page, error) {
		page := catalog.Page{}
		for i := 1; i <= limit; i++ {
			id := i
			page.Records = append(page.Records, catalog.Record{ID: &id})
		}
		return page, nil
	})
	ctrl := newTestController(t, fetcher, 5, nil)

	trigger(t, ctrl)
	assert.Equal(t, StateIdle, ctrl.Snapshot().State)

	trigger(t, ctrl)
	snap := ctrl.Snapshot()
	assert.Equal(t, StateExhausted, snap.State)
	assert.Equal(t, 5, snap.Size)
}

func TestController_TotalCountReached(t *testing.T) {
	fetcher := newPagedFetcher(30)
	total := 10
	fetcher.total = &total
	ctrl := newTestController(t, fetcher, 10, nil)

	trigger(t, ctrl)

	snap := ctrl.Snapshot()
	assert.Equal(t, StateExhausted, snap.State)
	require.NotNil(t, snap.TotalCount)
	assert.Equal(t, 10, *snap.TotalCount)
	assert.False(t, ctrl.ShouldFetchMore())
}

func TestController_UnrecognizedPageExhausts(t *testing.T) {
	fetcher := fetchFunc(func(context.Context, int, int) (catalog.Page, error) {
		return catalog.Page{Unrecognized: true}, nil
	})
	ctrl := newTestController(t, fetcher, 10, nil)

	trigger(t, ctrl)

	snap := ctrl.Snapshot()
	assert.Equal(t, StateExhausted, snap.State)
	assert.NoError(t, snap.LastError)
}

func TestController_FailureRecoversAfterDelay(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	fetcher := newPagedFetcher(40)
	fetcher.failures[20] = 1
	ctrl := newTestController(t, fetcher, 10, clk)

	trigger(t, ctrl)
	trigger(t, ctrl)
	trigger(t, ctrl)

	snap := ctrl.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, 20, snap.Offset)
	assert.Equal(t, 20, snap.Size)
	assert.ErrorIs(t, snap.LastError, errServer)
	assert.Contains(t, snap.ErrorMessage(), "status 500")
	assert.True(t, snap.HasMore)

	_, started := ctrl.Trigger()
	assert.False(t, started, "no automatic fetch while in the error state")

	clk.Advance(4 * time.Second)
	assert.Equal(t, StateError, ctrl.Snapshot().State)

	clk.Advance(time.Second)
	snap = ctrl.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.NoError(t, snap.LastError)
	assert.Empty(t, snap.ErrorMessage())

	trigger(t, ctrl)
	assert.Equal(t, []int{0, 10, 20, 20}, fetcher.offsets())
	assert.Equal(t, 30, ctrl.Snapshot().Size)
}

func TestController_ManualRetrySupersedesRecovery(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	fetcher := newPagedFetcher(40)
	fetcher.failures[0] = 1
	ctrl := newTestController(t, fetcher, 10, clk)

	_, started := ctrl.Retry()
	assert.False(t, started, "retry only applies in the error state")

	trigger(t, ctrl)
	require.Equal(t, StateError, ctrl.Snapshot().State)
	require.Equal(t, 1, clk.Pending())

	done, started := ctrl.Retry()
	require.True(t, started)
	waitDone(t, done)

	assert.Zero(t, clk.Pending(), "recovery timer must be cancelled")
	snap := ctrl.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 10, snap.Offset)

	clk.Advance(10 * time.Second)
	assert.Equal(t, StateIdle, ctrl.Snapshot().State)
	assert.Equal(t, []int{0, 0}, fetcher.offsets())
}

func TestController_RetryBypassesFilterGuard(t *testing.T) {
	fetcher := newPagedFetcher(40)
	fetcher.failures[0] = 1
	ctrl := newTestController(t, fetcher, 10, clock.NewManual(time.Unix(0, 0)))

	trigger(t, ctrl)
	ctrl.SetCriteria(filter.Criteria{Search: "record"})

	done, started := ctrl.Retry()
	require.True(t, started)
	waitDone(t, done)
	assert.Equal(t, 10, ctrl.Snapshot().Size)
}

func TestController_FilterBlocksAutomaticFetch(t *testing.T) {
	ctrl := newTestController(t, newPagedFetcher(40), 10, nil)

	ctrl.SetCriteria(filter.Criteria{Category: "fire"})
	assert.False(t, ctrl.ShouldFetchMore())
	_, started := ctrl.Trigger()
	assert.False(t, started)

	ctrl.SetCriteria(filter.Criteria{Category: "all"})
	assert.True(t, ctrl.ShouldFetchMore())
	assert.Equal(t, filter.Criteria{}, ctrl.Snapshot().Criteria)
}

func TestController_SingleFetchInFlight(t *testing.T) {
	release := make(chan struct{})
	fetcher := fetchFunc(func(ctx context.Context, _, _ int) (catalog.Page, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return catalog.Page{}, ctx.Err()
		}
		return catalog.Page{}, nil
	})
	ctrl := newTestController(t, fetcher, 10, nil)

	done, started := ctrl.Trigger()
	require.True(t, started)

	snap := ctrl.Snapshot()
	assert.Equal(t, StateFetching, snap.State)
	assert.True(t, snap.Loading)
	assert.False(t, ctrl.ShouldFetchMore())
	_, again := ctrl.Trigger()
	assert.False(t, again)

	close(release)
	waitDone(t, done)
	assert.False(t, ctrl.Snapshot().Loading)
}

func TestController_ResetDiscardsStaleSuccess(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var limits []int
	fetcher := fetchFunc(func(_ context.Context, limit, offset int) (catalog.Page, error) {
		mu.Lock()
		limits = append(limits, limit)
		first := len(limits) == 1
		mu.Unlock()

		if first {
			// Ignores cancellation so its result arrives after the reset.
			<-release
		}
		page := catalog.Page{}
		for i := offset + 1; i <= offset+limit; i++ {
			id := i
			page.Records = append(page.Records, catalog.Record{ID: &id})
		}
		return page, nil
	})
	ctrl := newTestController(t, fetcher, 10, nil)

	done, started := ctrl.Trigger()
	require.True(t, started)

	require.NoError(t, ctrl.Reset(25))
	snap := ctrl.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, uint64(1), snap.Epoch)
	assert.Equal(t, 25, snap.Limit)
	assert.Zero(t, snap.Offset)

	close(release)
	waitDone(t, done)

	snap = ctrl.Snapshot()
	assert.Zero(t, snap.Size, "stale page must not reach the new epoch")
	assert.Equal(t, StateIdle, snap.State)
	assert.Zero(t, snap.Offset)

	trigger(t, ctrl)
	assert.Equal(t, 25, ctrl.Snapshot().Size)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{10, 25}, limits)
}

func TestController_ResetOverlapsStaleFetch(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	fetcher := fetchFunc(func(_ context.Context, limit, offset int) (catalog.Page, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()

		if first {
			<-release
			return catalog.Page{Records: []catalog.Record{{Name: "stale"}}}, nil
		}
		page := catalog.Page{}
		for i := offset + 1; i <= offset+limit; i++ {
			id := i
			page.Records = append(page.Records, catalog.Record{ID: &id})
		}
		return page, nil
	})
	ctrl := newTestController(t, fetcher, 10, nil)

	stale, started := ctrl.Trigger()
	require.True(t, started)
	require.NoError(t, ctrl.Reset(25))

	// The new epoch fetches while the stale fetch is still blocked.
	fresh, started := ctrl.Load()
	require.True(t, started)
	waitDone(t, fresh)
	require.Equal(t, 25, ctrl.Snapshot().Size)

	close(release)
	waitDone(t, stale)

	snap := ctrl.Snapshot()
	assert.Equal(t, 25, snap.Size)
	assert.Equal(t, 25, snap.Offset)
	assert.Equal(t, StateIdle, snap.State)
	for _, r := range ctrl.Records() {
		assert.NotEqual(t, "stale", r.Name)
	}
}

func TestController_ResetCancelsInFlightFetch(t *testing.T) {
	fetcher := fetchFunc(func(ctx context.Context, _, _ int) (catalog.Page, error) {
		<-ctx.Done()
		return catalog.Page{}, ctx.Err()
	})
	ctrl := newTestController(t, fetcher, 10, nil)

	done, started := ctrl.Trigger()
	require.True(t, started)
	require.NoError(t, ctrl.Reset(10))
	waitDone(t, done)

	snap := ctrl.Snapshot()
	assert.Equal(t, StateIdle, snap.State, "cancellation of a stale fetch is not an error")
	assert.NoError(t, snap.LastError)
}

func TestController_ResetClearsErrorAndRecovery(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	fetcher := newPagedFetcher(40)
	fetcher.failures[0] = 1
	ctrl := newTestController(t, fetcher, 10, clk)

	trigger(t, ctrl)
	require.Equal(t, StateError, ctrl.Snapshot().State)

	require.NoError(t, ctrl.Reset(10))
	assert.Zero(t, clk.Pending())

	snap := ctrl.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.NoError(t, snap.LastError)
	assert.True(t, snap.HasMore)
}

func TestController_ResetRejectsInvalidLimit(t *testing.T) {
	ctrl := newTestController(t, newPagedFetcher(1), 10, nil)

	assert.Error(t, ctrl.Reset(0))
	assert.Error(t, ctrl.Reset(-5))
	assert.Equal(t, 10, ctrl.Snapshot().Limit)
	assert.Zero(t, ctrl.Snapshot().Epoch)
}

func TestController_Close(t *testing.T) {
	fetcher := fetchFunc(func(ctx context.Context, _, _ int) (catalog.Page, error) {
		<-ctx.Done()
		return catalog.Page{}, ctx.Err()
	})
	nop := zerolog.Nop()
	ctrl, err := NewController(fetcher, Config{Limit: 10, Logger: &nop})
	require.NoError(t, err)

	done, started := ctrl.Trigger()
	require.True(t, started)

	ctrl.Close()
	waitDone(t, done)
	ctrl.Close()

	_, started = ctrl.Trigger()
	assert.False(t, started)
	assert.ErrorIs(t, ctrl.Reset(10), ErrClosed)
}

func TestController_OnChange(t *testing.T) {
	var mu sync.Mutex
	var states []State

	nop := zerolog.Nop()
	ctrl, err := NewController(newPagedFetcher(5), Config{
		Limit:  10,
		Logger: &nop,
		OnChange: func(s Snapshot) {
			mu.Lock()
			states = append(states, s.State)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer ctrl.Close()

	trigger(t, ctrl)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateFetching, StateExhausted}, states)
}

func TestController_LoadIgnoresFilter(t *testing.T) {
	ctrl := newTestController(t, newPagedFetcher(40), 10, nil)
	ctrl.SetCriteria(filter.Criteria{Search: "record-00"})

	done, started := ctrl.Load()
	require.True(t, started)
	waitDone(t, done)
	assert.Equal(t, 10, ctrl.Snapshot().Size)

	_, started = ctrl.Trigger()
	assert.False(t, started, "automatic fetches still honor the filter")
}
