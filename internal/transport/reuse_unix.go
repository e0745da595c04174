//go:build unix

package transport

import "golang.org/x/sys/unix"

// reuseAddr lets several listeners share a group port on one host.
func reuseAddr(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}
