package lock

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLock(t *testing.T) {
	max := 100
	reg := NewRegistry()

	for i := 0; i < max; i++ {
		lock1 := reg.Acquire("testlock:" + strconv.Itoa(i))

		require.Equal(t, 1, lock1.usedby)

		lock1.Unlock()

		require.Equal(t, 0, lock1.usedby)

		lock2 := reg.Acquire("testlock:" + strconv.Itoa(i))

		require.Same(t, lock1, lock2)
		require.Equal(t, 1, lock2.usedby)

		lock2.Unlock()

		require.Equal(t, 0, lock2.usedby)
	}

	require.Equal(t, max, reg.Len())
	require.Equal(t, max, reg.CleanUnused(0))

	for i := 0; i < max; i++ {
		_, ok := reg.locks["testlock:"+strconv.Itoa(i)]
		require.Equal(t, false, ok)
	}
}

func TestCleanUnusedKeepsBusyAndRecent(t *testing.T) {
	reg := NewRegistry()

	busy := reg.Acquire("busy")
	recent := reg.Acquire("recent")
	recent.Unlock()

	require.Equal(t, 0, reg.CleanUnused(time.Hour))
	require.Equal(t, 2, reg.Len())

	require.Equal(t, 1, reg.CleanUnused(0))
	require.Equal(t, 1, reg.Len())

	busy.Unlock()
	require.Equal(t, 1, reg.CleanUnused(0))
	require.Equal(t, 0, reg.Len())
}

func TestFirstCallersShareOneMutex(t *testing.T) {
	reg := NewRegistry()

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
		seen    = make(map[*Mutex]struct{})
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			m := reg.Acquire("new-key")

			mu.Lock()
			seen[m] = struct{}{}
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()

			m.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	require.Len(t, seen, 1)
	require.Equal(t, 1, maxSeen)
}

func TestDistinctKeysDoNotBlock(t *testing.T) {
	reg := NewRegistry()

	held := reg.Acquire("slow")
	defer held.Unlock()

	done := make(chan struct{})
	go func() {
		other := reg.Acquire("fast")
		other.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring a different key blocked on a held key")
	}
}

func TestRemoveWhileHeld(t *testing.T) {
	reg := NewRegistry()

	holder := reg.Acquire("file")

	waiterIn := make(chan *Mutex)
	go func() {
		waiterIn <- reg.Acquire("file")
	}()

	// let the waiter queue on the old mutex
	time.Sleep(20 * time.Millisecond)

	reg.Remove("file")
	require.Equal(t, 0, reg.Len())

	late := reg.Acquire("file")
	require.NotSame(t, holder, late)

	holder.Unlock()

	select {
	case <-waiterIn:
		t.Fatal("waiter entered while a post-removal caller held the fresh mutex")
	case <-time.After(20 * time.Millisecond):
	}

	late.Unlock()

	select {
	case m := <-waiterIn:
		require.Same(t, late, m)
		m.Unlock()
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the fresh mutex")
	}
}

func TestStartCleaner(t *testing.T) {
	reg := NewRegistry()
	reg.Acquire("idle").Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cleaned := make(chan int, 1)

	go reg.StartCleaner(ctx, 5*time.Millisecond, 0, func(removed, remaining int) {
		if removed > 0 {
			select {
			case cleaned <- remaining:
			default:
			}
		}
	})
	defer cancel()

	select {
	case remaining := <-cleaned:
		require.Equal(t, 0, remaining)
	case <-time.After(time.Second):
		t.Fatal("cleaner did not run")
	}
}
