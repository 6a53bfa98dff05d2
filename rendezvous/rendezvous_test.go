package rendezvous_test

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/rzcore/corepc/rendezvous"
)

// TestNoBuffering checks that a successful Send only returns once the
// paired Recv has the value, and TrySend never succeeds without an
// already-waiting receiver (zero capacity, no slack).
func TestNoBuffering(t *testing.T) {
	s, r := rendezvous.New[int]()

	err := s.TrySend(1)
	require.Error(t, err)
	assert.True(t, rendezvous.IsFull[int](err))

	var g errgroup.Group
	g.Go(func() error { return s.Send(42) })

	time.Sleep(20 * time.Millisecond)
	got, err := r.Recv()
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	require.NoError(t, g.Wait())
}

// TestAtMostOnceDelivery runs a sender goroutine concurrently with a
// receiver loop: every value handed to Send shows up exactly once on
// the Recv side.
func TestAtMostOnceDelivery(t *testing.T) {
	const n = 500
	s, r := rendezvous.New[int]()

	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < n; i++ {
			if err := s.Send(i); err != nil {
				return err
			}
		}
		return nil
	})

	seen := make(map[int]int, n)
	for i := 0; i < n; i++ {
		v, err := r.Recv()
		require.NoError(t, err)
		seen[v]++
	}
	require.NoError(t, g.Wait())

	for i := 0; i < n; i++ {
		assert.Equalf(t, 1, seen[i], "value %d delivered %d times", i, seen[i])
	}
}

// TestFIFOAmongSameSideWaiters checks that two blocked senders on the
// same channel are paired off in registration order.
func TestFIFOAmongSameSideWaiters(t *testing.T) {
	s, r := rendezvous.New[int]()

	firstRegistered := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		close(firstRegistered)
		return s.Send(1)
	})
	<-firstRegistered
	// First send has either already paired (unlikely, nothing is
	// receiving yet) or is parked; give it a moment to park.
	time.Sleep(10 * time.Millisecond)

	g.Go(func() error { return s.Send(2) })
	time.Sleep(10 * time.Millisecond)

	first, err := r.Recv()
	require.NoError(t, err)
	second, err := r.Recv()
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
	require.NoError(t, g.Wait())
}

// TestNoSelfRendezvous checks that a single select session offering
// both a Send and a Recv on the same channel must not pair with
// itself even though both cases are individually ready-looking.
func TestNoSelfRendezvous(t *testing.T) {
	s, r := rendezvous.New[int]()

	i, _, err := rendezvous.TrySelect(
		rendezvous.Send(s, 7),
		rendezvous.Recv(r),
	)
	assert.Equal(t, -1, i)
	assert.ErrorIs(t, err, rendezvous.ErrWouldBlock)

	// A blocking Select offering the same pair parks instead of pairing
	// with itself, and stays parked until s closes.
	other, r2 := rendezvous.New[int]()
	_ = other
	var g errgroup.Group
	g.Go(func() error {
		_, _, err := rendezvous.Select(
			rendezvous.Send(s, 9),
			rendezvous.Recv(r),
		)
		return err
	})
	time.Sleep(10 * time.Millisecond)
	_, err = r2.TryRecv()
	// r2 belongs to a different channel than s/r, so it must report
	// Empty instead of falsely pairing; this just exercises that the
	// self-rendezvous exclusion above didn't accidentally widen scope.
	assert.Error(t, err)
	s.Close()
	_ = g.Wait()
}

// TestMonotonicClose checks that only one of many concurrent Close
// callers on the same channel observes the transition.
func TestMonotonicClose(t *testing.T) {
	s, r := rendezvous.New[int]()

	var closes int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			if s.Close() {
				atomic.AddInt32(&closes, 1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), closes)

	err := s.Send(1)
	require.Error(t, err)
	assert.True(t, rendezvous.IsSendClosed[int](err))

	_, err = r.Recv()
	require.Error(t, err)
	var re *rendezvous.RecvError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, rendezvous.RecvClosed, re.Reason)
}

// TestMessagePreservationOnFailure checks that Full, Closed and
// Timeout all hand the original message back rather than dropping it.
func TestMessagePreservationOnFailure(t *testing.T) {
	s, r := rendezvous.New[string]()

	err := s.TrySend("full")
	require.Error(t, err)
	var se *rendezvous.SendError[string]
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "full", se.Msg)

	s.Close()
	err = s.Send("closed")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "closed", se.Msg)

	s2, _ := rendezvous.New[string]()
	err = s2.SendDeadline("timeout", time.Now().Add(20*time.Millisecond))
	require.Error(t, err)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "timeout", se.Msg)
	assert.True(t, rendezvous.IsSendTimeout[string](err))

	_ = r
}

// TestS1Rendezvous runs, at a reduced test-suite-friendly timescale, a
// receiver that parks first while a sender arrives later: the receive
// only completes once the sender shows up.
func TestS1Rendezvous(t *testing.T) {
	s, r := rendezvous.New[int]()

	start := time.Now()
	var recvAt time.Duration
	var g errgroup.Group
	g.Go(func() error {
		v, err := r.Recv()
		recvAt = time.Since(start)
		if err != nil {
			return err
		}
		if v != 7 {
			t.Errorf("got %d, want 7", v)
		}
		return nil
	})

	time.Sleep(5 * time.Millisecond) // let the receiver park first
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, s.Send(7))
	require.NoError(t, g.Wait())

	assert.GreaterOrEqual(t, recvAt, 150*time.Millisecond)
}

// TestS2SelectTimeout checks that a select offering only a Recv with
// no sender ever arriving takes the deadline arm, and that a Select on
// a fresh channel still pairs normally afterward.
func TestS2SelectTimeout(t *testing.T) {
	_, r := rendezvous.New[int]()

	deadline := time.Now().Add(100 * time.Millisecond)
	start := time.Now()
	i, _, err := rendezvous.SelectDeadline(deadline, rendezvous.Recv(r))
	elapsed := time.Since(start)

	assert.Equal(t, -1, i)
	assert.ErrorIs(t, err, rendezvous.ErrSelectTimeout)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)

	// A fresh select on a new channel pairs cleanly with a sender that
	// arrives after the timed-out session.
	s2, r2 := rendezvous.New[int]()
	var g errgroup.Group
	g.Go(func() error { return s2.Send(1) })
	_, v, err := rendezvous.Select(rendezvous.Recv(r2))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	require.NoError(t, g.Wait())
}

// TestS3CloseWake checks that a parked receiver observes Closed once
// the last sender handle drops.
func TestS3CloseWake(t *testing.T) {
	s, r := rendezvous.New[int]()

	var g errgroup.Group
	var recvErr error
	g.Go(func() error {
		_, recvErr = r.Recv()
		return nil
	})

	time.Sleep(50 * time.Millisecond)
	assert.True(t, s.Close())
	require.NoError(t, g.Wait())

	require.Error(t, recvErr)
	var re *rendezvous.RecvError
	require.ErrorAs(t, recvErr, &re)
	assert.Equal(t, rendezvous.RecvClosed, re.Reason)
}

// dropCounter is a leak-testing helper: Go has no destructors, so
// every path that would drop a payload calls Release explicitly.
type dropCounter struct {
	released *int64
}

func newDropCounter(counter *int64) dropCounter {
	return dropCounter{released: counter}
}

func (d dropCounter) Release() {
	atomic.AddInt64(d.released, 1)
}

// TestS4Drops runs, at a reduced iteration/message count, a check that
// every message handed to Send is eventually released exactly once,
// whether it was actually delivered or returned on failure.
func TestS4Drops(t *testing.T) {
	const iterations = 20
	rng := rand.New(rand.NewSource(1))

	for iter := 0; iter < iterations; iter++ {
		s, r := rendezvous.New[dropCounter]()
		n := rng.Intn(50)

		var sent int64
		var g errgroup.Group
		g.Go(func() error {
			for i := 0; i < n; i++ {
				dc := newDropCounter(&sent)
				if err := s.Send(dc); err != nil {
					dc.Release()
					return err
				}
			}
			return nil
		})

		for i := 0; i < n; i++ {
			dc, err := r.Recv()
			require.NoError(t, err)
			dc.Release()
		}
		require.NoError(t, g.Wait())

		assert.Equal(t, int64(n), sent, "iteration %d: released count mismatch", iter)
	}
}

// TestS5FairnessAcrossTwoChannels runs, at a reduced selection count,
// a check that with both channels always ready, neither branch
// starves.
func TestS5FairnessAcrossTwoChannels(t *testing.T) {
	const rounds = 2000

	s1, r1 := rendezvous.New[int]()
	s2, r2 := rendezvous.New[int]()
	defer s1.Close()
	defer s2.Close()

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		for {
			select {
			case <-done:
				return nil
			default:
			}
			s1.TrySend(1)
			s2.TrySend(2)
		}
	})

	var r1Count, r2Count int
	for i := 0; i < rounds; i++ {
		idx, _, err := rendezvous.Select(rendezvous.Recv(r1), rendezvous.Recv(r2))
		require.NoError(t, err)
		if idx == 0 {
			r1Count++
		} else {
			r2Count++
		}
	}
	close(done)
	_ = g.Wait()

	assert.GreaterOrEqual(t, r1Count, rounds/8)
	assert.GreaterOrEqual(t, r2Count, rounds/8)
}

// TestSendDeadlineWithContext exercises SendDeadline against a
// context.Context-derived deadline, the style most callers
// outside this package's own tests will actually use.
func TestSendDeadlineWithContext(t *testing.T) {
	s, _ := rendezvous.New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	deadline, _ := ctx.Deadline()
	err := s.SendDeadline(1, deadline)
	require.Error(t, err)
	assert.True(t, rendezvous.IsSendTimeout[int](err))
}

// TestClonedHandlesShareRefcount ensures Close on a cloned Sender only
// closes the channel once every clone has been closed, matching the
// ref-counted handle contract handles.go documents.
func TestClonedHandlesShareRefcount(t *testing.T) {
	s, r := rendezvous.New[int]()
	s2 := s.Clone()

	assert.False(t, s.Close())
	err := s2.TrySend(1)
	// Still open: s2 hasn't closed yet, but nobody's receiving, so this
	// should be Full rather than Closed.
	if err != nil {
		assert.True(t, rendezvous.IsFull[int](err))
	}
	assert.True(t, s2.Close())

	_, err = r.Recv()
	require.Error(t, err)
	var re *rendezvous.RecvError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, rendezvous.RecvClosed, re.Reason)
}

// TestConcurrentSelectManyChannels exercises Select across a larger
// fan-in to shake out pairing races beyond the two-channel fairness
// scenario above.
func TestConcurrentSelectManyChannels(t *testing.T) {
	const n = 4
	senders := make([]*rendezvous.Sender[int], n)
	receivers := make([]*rendezvous.Receiver[int], n)
	for i := range senders {
		senders[i], receivers[i] = rendezvous.New[int]()
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			_ = senders[i].Send(i)
		}()
	}

	got := make(map[int]bool, n)
	remaining := receivers
	for len(remaining) > 0 {
		var idx int
		var v any
		var err error
		switch len(remaining) {
		case 1:
			idx, v, err = rendezvous.Select(rendezvous.Recv(remaining[0]))
		default:
			cases := make([]*rendezvous.RecvCase[int], len(remaining))
			for i, r := range remaining {
				cases[i] = rendezvous.Recv(r)
			}
			idx, v, err = selectAny(cases)
		}
		require.NoError(t, err)
		got[v.(int)] = true
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	wg.Wait()

	assert.Len(t, got, n)
}

func selectAny(cases []*rendezvous.RecvCase[int]) (int, any, error) {
	switch len(cases) {
	case 2:
		return rendezvous.Select(cases[0], cases[1])
	case 3:
		return rendezvous.Select(cases[0], cases[1], cases[2])
	default:
		return rendezvous.Select(cases[0], cases[1], cases[2], cases[3])
	}
}
