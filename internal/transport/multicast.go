package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/ipv4"
)

// maxDatagram is large enough for any UDP payload.
const maxDatagram = 65536

// Multicast receives datagrams sent to a multicast group.
type Multicast struct {
	group *net.UDPAddr
	conn  net.PacketConn
	pc    *ipv4.PacketConn
	buf   []byte

	closeOnce sync.Once
	closeErr  error
}

// ListenMulticast joins the group at address ("ip:port") on the named
// interface, or on the system default when ifname is empty.
func ListenMulticast(address, ifname string) (*Multicast, error) {
	group, err := net.ResolveUDPAddr("udp4", address)
	if err != nil {
		return nil, fmt.Errorf("invalid multicast address %q: %w", address, err)
	}
	if !group.IP.IsMulticast() {
		return nil, fmt.Errorf("%s is not a multicast address", group.IP)
	}

	var ifi *net.Interface
	if ifname != "" {
		ifi, err = net.InterfaceByName(ifname)
		if err != nil {
			return nil, fmt.Errorf("unknown interface %q: %w", ifname, err)
		}
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var serr error
			if err := c.Control(func(fd uintptr) { serr = reuseAddr(fd) }); err != nil {
				return err
			}
			return serr
		},
	}
	conn, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf("0.0.0.0:%d", group.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind port %d: %w", group.Port, err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(ifi, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to join %s: %w", group.IP, err)
	}
	// Several groups may share a port; filter on the destination.
	if err := pc.SetControlMessage(ipv4.FlagDst, true); err != nil {
		log.Debug("Destination filtering unavailable", "group", group, "error", err)
	}

	log.Info("Joined multicast group", "group", group, "interface", ifname)
	return &Multicast{
		group: group,
		conn:  conn,
		pc:    pc,
		buf:   make([]byte, maxDatagram),
	}, nil
}

// Addr returns the group address.
func (m *Multicast) Addr() *net.UDPAddr {
	return m.group
}

// Receive blocks for the next non-empty datagram addressed to the group.
// It has no timeout of its own; cancel ctx to unblock it.
func (m *Multicast) Receive(ctx context.Context) (Packet, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = m.pc.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		n, cm, src, err := m.pc.ReadFrom(m.buf)
		if err != nil {
			if ctx.Err() != nil {
				return Packet{}, ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return Packet{}, ErrClosed
			}
			return Packet{}, err
		}
		if n == 0 {
			continue
		}
		if cm != nil && cm.Dst != nil && !cm.Dst.Equal(m.group.IP) {
			continue
		}

		payload := make([]byte, n)
		copy(payload, m.buf[:n])
		return Packet{Payload: payload, Sender: src.String(), At: time.Now()}, nil
	}
}

// Close leaves the group and closes the socket. Later calls are no-ops.
func (m *Multicast) Close() error {
	m.closeOnce.Do(func() {
		_ = m.pc.LeaveGroup(nil, &net.UDPAddr{IP: m.group.IP})
		m.closeErr = m.conn.Close()
	})
	return m.closeErr
}
