// Copyright (c) 2026 The HCX Platform Authors
// SPDX-License-Identifier: BSD-2-Clause

/*
Package broadcast fans processed callbacks out to live subscribers.

A [Hub] keeps a set of buffered subscriber channels. Publishing is fire and
forget: with no subscribers the event is discarded, and a subscriber whose
buffer is full misses the event instead of stalling the publisher.

	hub := broadcast.NewHub()
	ch := hub.Subscribe(64)
	defer hub.Unsubscribe(ch)

	hub.Publish(broadcast.EventAcknowledgement, doc)

# Cross-node Delivery

When several replicas serve callbacks behind a load balancer, a
[RedisRelay] shares events over Redis pub/sub so that a subscriber attached
to any replica sees every callback:

	client, _ := broadcast.Connect(ctx, "redis://cache:6379/0")
	relay := broadcast.NewRedisRelay(client, "", hub, logger)
	go relay.Run(ctx)

Forwarding only enqueues the event; the Redis round trip happens on the
relay goroutine.
*/
package broadcast
