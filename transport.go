package regbot

import "github.com/wagiedev/regbot/internal/config"

// Transport defines the interface for registration server communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote connections).
//
// The default implementation is ServerTransport which spawns a subprocess.
// Custom transports can be injected via WithTransport.
type Transport = config.Transport
