// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// HealthProbe caps how long the health probe subcommand waits for SERVING.
const HealthProbe = 3 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Read bounds reading a full request body.
const Read = 15 * time.Second

// Write bounds writing a response. Websocket streams clear it after upgrade.
const Write = 15 * time.Second

// Idle bounds keep-alive connections between requests.
const Idle = 60 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// StoreOpen bounds connecting to and migrating a storage backend at startup.
const StoreOpen = 10 * time.Second
