// Package lifecycle holds timing shared by start and stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds a single lifecycle hook such as a DB ping or a server shutdown.
const DefaultTimeout = 10 * time.Second
