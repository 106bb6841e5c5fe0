// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package pipeline

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/excubitor/internal/config"
)

// Transport provides the pub/sub primitives the pipeline runs on: one
// shared publisher and a subscriber per handler. The in-process build uses
// a fan-out channel; the nats build uses JetStream with durable consumers.
type Transport interface {
	Publisher() message.Publisher
	// Subscriber returns the subscription endpoint for a named handler.
	// Each handler sees every message on the topics it subscribes to.
	Subscriber(name string) (message.Subscriber, error)
	Close() error
}

// goChannelTransport carries pipeline messages over an in-process pub/sub.
// Every subscriber gets its own copy of each message, matching the fan-out
// the NATS transport provides with per-handler consumers.
type goChannelTransport struct {
	channel *gochannel.GoChannel
}

func newGoChannelTransport(pipeCfg *config.PipelineConfig, logger watermill.LoggerAdapter) *goChannelTransport {
	buffer := int64(256)
	if pipeCfg != nil && pipeCfg.BufferSize > 0 {
		buffer = int64(pipeCfg.BufferSize)
	}
	channel := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: buffer,
	}, logger)
	return &goChannelTransport{channel: channel}
}

func (t *goChannelTransport) Publisher() message.Publisher {
	return t.channel
}

// Subscriber returns the shared channel regardless of handler name; the
// GoChannel fans out to every subscription on its own.
func (t *goChannelTransport) Subscriber(string) (message.Subscriber, error) {
	return t.channel, nil
}

func (t *goChannelTransport) Close() error {
	return t.channel.Close()
}
