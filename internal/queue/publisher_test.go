package queue

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// silentBroker accepts TCP connections and never answers the AMQP handshake.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		var held []net.Conn
		defer func() {
			for _, c := range held {
				_ = c.Close()
			}
			close(done)
		}()
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			held = append(held, c)
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestPublisher_GivesUpOnSilentBroker(t *testing.T) {
	p := &Publisher{url: silentBroker(t), dialTimeout: 200 * time.Millisecond}

	start := time.Now()
	err := p.PublishAuctionClosed(context.Background(), AuctionClosedEvent{AuctionID: 1, Reason: ReasonManual})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPublisher_ExpiredContextSkipsDial(t *testing.T) {
	p := NewPublisher(silentBroker(t))
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := p.PublishAuctionClosed(ctx, AuctionClosedEvent{AuctionID: 1, Reason: ReasonExpired})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
