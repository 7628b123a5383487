// Package netutil picks the HTTP API listen address.
package netutil

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"syscall"
)

// ErrNoBindAddr is returned when the preferred address and every candidate
// are taken.
var ErrNoBindAddr = errors.New("no available api bind addresses")

// Listen binds the preferred address, or with autoFallback the first free
// candidate. The returned listener is already bound, so the choice cannot be
// lost to another process.
func Listen(preferred string, candidates []string, autoFallback bool) (net.Listener, error) {
	if preferred != "" {
		ln, err := net.Listen("tcp", preferred)
		if err == nil {
			return ln, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen %s: %w", preferred, err)
		}
		if !autoFallback {
			return nil, fmt.Errorf("preferred bind address in use: %s", preferred)
		}
		slog.Warn("api bind address in use, trying fallbacks", "addr", preferred)
	}

	for _, addr := range candidates {
		if addr == preferred {
			continue
		}
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		slog.Debug("api bind candidate unavailable", "addr", addr, "error", err)
	}
	return nil, ErrNoBindAddr
}

// SelectBindAddr reports the address Listen would bind, releasing it again.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	ln, err := Listen(preferred, candidates, autoFallback)
	if err != nil {
		return "", err
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		return "", err
	}
	return addr, nil
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}
