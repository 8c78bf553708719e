// Package timeouts defines shared timeout constants used across the forge
// process. Centralizing these values keeps them discoverable.
package timeouts

import "time"

// Shutdown limits how long the gRPC server waits for in-flight calls during
// graceful shutdown before forcing a stop.
const Shutdown = 5 * time.Second

// LockWait caps how long a forge operation waits for its player and stack
// locks before giving up.
const LockWait = 10 * time.Second

// SQLiteBusy is the busy timeout handed to SQLite connections.
const SQLiteBusy = 5 * time.Second
