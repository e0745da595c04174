//go:build !unix

package transport

func reuseAddr(uintptr) error {
	return nil
}
