// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

/*
Package websocket streams camera events and bridge status to connected UI
clients over gorilla/websocket, using a hub-and-spoke pattern.

Key components:

  - Hub: central broker that manages client connections and broadcasts
  - Client: one WebSocket connection with read/write goroutines
  - Message: typed frame ("camera_event", "alert", "status", "ping", "pong")

Each client runs two goroutines: readPump reads frames and answers pings,
writePump writes broadcasts and keepalive pings. The hub fans messages out
in client-ID order; a client whose send buffer stays full is dropped so it
never stalls the others.

The hub runs under the supervision tree via Serve, which closes every
client on shutdown. The pipeline's websocket stage feeds the hub through
BroadcastJSON; the API layer upgrades connections and registers clients.

Timing: 10s write deadline, 60s pong wait, pings every 54s, 64KB read
limit (clients only send pings and small commands).
*/
package websocket
