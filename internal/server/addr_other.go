//go:build !unix && !windows

package server

import "strings"

func isAddrInUse(err error) bool {
	return strings.Contains(err.Error(), "address already in use")
}
