package common

const (
	DefaultLoginServerEndpoint = "http://127.0.0.1:8000"
	DefaultLoginServerBase     = "/api"
	DefaultServerHost          = "127.0.0.1"
	DefaultServerPort          = 5226

	// DefaultServerSecret marks an unset secret. A random one replaces it
	// at start up.
	DefaultServerSecret = "changeme"
)
