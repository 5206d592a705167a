package utils

// NormalizeLocalBind derives the local end of a reverse tunnel from the
// service's own listen address. A wildcard listen address is not dialable,
// so it maps to loopback.
func NormalizeLocalBind(host string, port int) (string, int) {
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "localhost"
	}
	if port <= 0 {
		port = 5000
	}
	return host, port
}
