package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-cerp/retrieval-core/internal/model"
)

func TestCache_PutThenGetHits(t *testing.T) {
	c := New(WithTTL(time.Minute))
	defer c.Close()

	c.Put(&Entry{Fingerprint: "fp1", Response: model.Result{Success: true}})

	entry, ok := c.Get("fp1")
	require.True(t, ok)
	assert.True(t, entry.Response.Success)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(0), misses)
}

func TestCache_GetMissOnUnknownFingerprint(t *testing.T) {
	c := New()
	defer c.Close()

	_, ok := c.Get("missing")
	assert.False(t, ok)
	_, misses := c.Stats()
	assert.Equal(t, int64(1), misses)
}

func TestCache_EntryExpiresLazilyPastTTL(t *testing.T) {
	c := New(WithTTL(10 * time.Millisecond))
	defer c.Close()

	c.Put(&Entry{Fingerprint: "fp1", Response: model.Result{Success: true}})
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("fp1")
	assert.False(t, ok, "entry past TTL must be treated as absent")
	assert.Equal(t, 0, c.Len(), "lazy expiry evicts the stale entry")
}

func TestCache_SweeperEvictsExpiredEntriesInBackground(t *testing.T) {
	c := New(WithTTL(5*time.Millisecond), WithSweepInterval(10*time.Millisecond))
	defer c.Close()

	c.Put(&Entry{Fingerprint: "fp1", Response: model.Result{Success: true}})
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 0, c.Len(), "background sweeper should have evicted the expired entry")
}

func TestCache_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(WithCapacity(2), WithTTL(time.Minute))
	defer c.Close()

	c.Put(&Entry{Fingerprint: "fp1"})
	c.Put(&Entry{Fingerprint: "fp2"})
	c.Get("fp1") // touch fp1 so fp2 becomes the LRU victim
	c.Put(&Entry{Fingerprint: "fp3"})

	_, ok1 := c.Get("fp1")
	_, ok2 := c.Get("fp2")
	_, ok3 := c.Get("fp3")
	assert.True(t, ok1)
	assert.False(t, ok2, "least recently used entry must be evicted on overflow")
	assert.True(t, ok3)
}

func TestCache_GetOrComputeRunsComputeOnceForConcurrentCallers(t *testing.T) {
	c := New()
	defer c.Close()

	var calls int64
	compute := func(ctx context.Context) (model.Result, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return model.Result{Success: true, Response: "computed"}, nil
	}

	var wg sync.WaitGroup
	results := make([]model.Result, 10)
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, _, err := c.GetOrCompute(context.Background(), "shared-fp", Entry{}, compute)
			require.NoError(t, err)
			results[i] = r
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "compute must run at most once per fingerprint")
	for _, r := range results {
		assert.Equal(t, "computed", r.Response)
	}
}

func TestCache_GetOrComputeCachesSubsequentCallsAsHits(t *testing.T) {
	c := New()
	defer c.Close()

	var calls int64
	compute := func(ctx context.Context) (model.Result, error) {
		atomic.AddInt64(&calls, 1)
		return model.Result{Success: true}, nil
	}

	_, hit1, err := c.GetOrCompute(context.Background(), "fp1", Entry{}, compute)
	require.NoError(t, err)
	assert.False(t, hit1)

	_, hit2, err := c.GetOrCompute(context.Background(), "fp1", Entry{}, compute)
	require.NoError(t, err)
	assert.True(t, hit2)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestCache_GetOrComputePropagatesComputeError(t *testing.T) {
	c := New()
	defer c.Close()

	boom := assert.AnError
	_, hit, err := c.GetOrCompute(context.Background(), "fp1", Entry{}, func(ctx context.Context) (model.Result, error) {
		return model.Result{}, boom
	})
	assert.False(t, hit)
	assert.ErrorIs(t, err, boom)

	// A failed compute must not poison the cache for the next attempt.
	_, ok := c.Get("fp1")
	assert.False(t, ok)
}

func TestCache_ClearAllRemovesEverything(t *testing.T) {
	c := New()
	defer c.Close()

	c.Put(&Entry{Fingerprint: "fp1", Scope: ScopeSearch})
	c.Put(&Entry{Fingerprint: "fp2", Scope: ScopeSearch})

	removed := c.Clear(ScopeAll, "")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ClearByScopeOnlyTouchesMatchingEntries(t *testing.T) {
	c := New()
	defer c.Close()

	c.Put(&Entry{Fingerprint: "fp1", Scope: ScopeSearch})
	c.Put(&Entry{Fingerprint: "fp2", Scope: ScopeEmbeddings})

	removed := c.Clear(ScopeEmbeddings, "")
	assert.Equal(t, 1, removed)

	_, ok := c.Get("fp1")
	assert.True(t, ok)
}

func TestCache_ClearByPatternMatchesRepositoryOrLanguage(t *testing.T) {
	c := New()
	defer c.Close()

	c.Put(&Entry{Fingerprint: "fp1", Scope: ScopeSearch, Repository: "payments-service"})
	c.Put(&Entry{Fingerprint: "fp2", Scope: ScopeSearch, Repository: "billing-service"})
	c.Put(&Entry{Fingerprint: "fp3", Scope: ScopeSearch, Language: "python"})

	removed := c.Clear(ScopeSearch, "payments")
	assert.Equal(t, 1, removed)

	_, ok1 := c.Get("fp1")
	_, ok2 := c.Get("fp2")
	assert.False(t, ok1)
	assert.True(t, ok2)
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New()
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
