// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

//go:build !nats

package pipeline

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/excubitor/internal/config"
	"github.com/tomtom215/excubitor/internal/logging"
)

// NewTransport builds the in-process transport. In this build NATS support
// is compiled out; enabling it in config only produces a warning.
func NewTransport(natsCfg *config.NATSConfig, pipeCfg *config.PipelineConfig, logger watermill.LoggerAdapter) (Transport, error) {
	if natsCfg != nil && natsCfg.Enabled {
		logging.Warn().Msg("NATS transport requested but support is not compiled in, using in-process transport (build with -tags nats)")
	}
	return newGoChannelTransport(pipeCfg, logger), nil
}
