package reactor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mindburn-labs/reactorcore/pkg/reactor"
)

func TestAsyncChannelSendNeverBlocksAndDrainsAll(t *testing.T) {
	c := reactor.NewAsyncChannel()
	for i := 0; i < 1000; i++ {
		c.Send(&reactor.ScheduledEvent{Tag: reactor.ZeroTag})
	}
	require.Equal(t, 1000, c.Len())

	q := reactor.NewEventQueue()
	n := c.DrainInto(q)
	require.Equal(t, 1000, n)
	require.Equal(t, 0, c.Len())
}

func TestAsyncChannelWaitSignalReturnsOnSend(t *testing.T) {
	c := reactor.NewAsyncChannel()
	done := make(chan bool, 1)
	go func() {
		done <- c.WaitSignal(context.Background(), time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	c.Send(&reactor.ScheduledEvent{Tag: reactor.ZeroTag})

	select {
	case woke := <-done:
		require.True(t, woke)
	case <-time.After(time.Second):
		t.Fatal("WaitSignal did not return after Send")
	}
}

func TestAsyncChannelWaitSignalTimesOut(t *testing.T) {
	c := reactor.NewAsyncChannel()
	woke := c.WaitSignal(context.Background(), 10*time.Millisecond)
	require.False(t, woke)
}

func TestAsyncChannelWaitSignalReturnsImmediatelyIfAlreadyPending(t *testing.T) {
	c := reactor.NewAsyncChannel()
	c.Send(&reactor.ScheduledEvent{Tag: reactor.ZeroTag})
	woke := c.WaitSignal(context.Background(), 0)
	require.True(t, woke)
}

func TestAsyncChannelWaitSignalRespectsContextCancellation(t *testing.T) {
	c := reactor.NewAsyncChannel()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		done <- c.WaitSignal(ctx, time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case woke := <-done:
		require.False(t, woke)
	case <-time.After(time.Second):
		t.Fatal("WaitSignal did not return after context cancellation")
	}
}

func TestAsyncChannelSendAfterCloseIsDropped(t *testing.T) {
	c := reactor.NewAsyncChannel()
	c.Close()
	c.Send(&reactor.ScheduledEvent{Tag: reactor.ZeroTag})
	require.Equal(t, 0, c.Len())
	require.True(t, c.Closed())
}
