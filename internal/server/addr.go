package server

import (
	"fmt"
	"net"
)

// IsAddrInUse reports whether err means the port is already bound by
// another process.
func IsAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	return isAddrInUse(err)
}

func listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return ln, nil
}
