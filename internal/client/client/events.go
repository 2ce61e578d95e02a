package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var watchDesc = &grpc.StreamDesc{StreamName: "WatchSession", ServerStreams: true}

// SubscribeToSessionEvents opens the WatchSession stream and also delivers
// token refreshes performed by this client. A stream that ends is reopened
// with backoff until the returned func is called or ctx is done.
func (c *GRPCClient) SubscribeToSessionEvents(ctx context.Context, fn func(models.Event)) (func(), error) {
	sctx, cancel := context.WithCancel(ctx)

	stream, err := c.openWatch(sctx)
	if err != nil {
		cancel()
		return nil, mapError(err)
	}

	id := c.addSubscriber(fn)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			c.removeSubscriber(id)
		})
	}

	go c.watchLoop(sctx, stream, fn)

	return stop, nil
}

func (c *GRPCClient) openWatch(ctx context.Context) (grpc.ClientStream, error) {
	stream, err := c.conn.NewStream(ctx, watchDesc, MethodWatchSession)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}

// watchLoop drains stream and reopens it whenever it ends. The backoff
// restarts once a reopened stream has delivered an event.
func (c *GRPCClient) watchLoop(ctx context.Context, stream grpc.ClientStream, fn func(models.Event)) {
	var attempt uint
	for {
		if stream != nil && c.watch(ctx, stream, fn) {
			attempt = 0
		}
		if ctx.Err() != nil {
			return
		}

		attempt++
		delay := c.watchBackoff(ctx, attempt)
		c.log.Info(ctx, "reopening session event stream", "attempt", attempt, "delay", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		s, err := c.openWatch(ctx)
		switch {
		case err == nil:
			stream = s
		case status.Code(err) == codes.Canceled:
			// connection closed
			return
		default:
			c.log.Warn(ctx, "reopen session event stream", "error", mapError(err))
			stream = nil
		}
	}
}

// watch delivers events from stream until it ends and reports whether any
// event was received.
func (c *GRPCClient) watch(ctx context.Context, stream grpc.ClientStream, fn func(models.Event)) bool {
	received := false
	for {
		msg := &structpb.Struct{}
		if err := stream.RecvMsg(msg); err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				c.log.Warn(ctx, "session event stream closed", "error", mapError(err))
			}
			return received
		}
		received = true

		ev, err := eventFrom(msg)
		if err != nil {
			c.log.Warn(ctx, "skip session event", "error", err)
			continue
		}

		switch {
		case ev.Kind == models.EventSignedOut:
			c.clearCurrent(ctx)
		case ev.Session != nil:
			c.setCurrent(ctx, ev.Session)
		}

		if ctx.Err() != nil {
			return received
		}
		fn(ev)
	}
}

func (c *GRPCClient) addSubscriber(fn func(models.Event)) uint64 {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	c.nextSub++
	c.subs[c.nextSub] = fn
	return c.nextSub
}

func (c *GRPCClient) removeSubscriber(id uint64) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	delete(c.subs, id)
}

// publish delivers a locally originated event to every subscriber.
func (c *GRPCClient) publish(ev models.Event) {
	c.subsMu.Lock()
	fns := make([]func(models.Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
