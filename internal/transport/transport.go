// Package transport delivers raw feed packets: live from a multicast group,
// recorded to a compressed capture, or replayed from one.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Receive after Close.
var ErrClosed = errors.New("source is closed")

// Packet is one datagram as received.
type Packet struct {
	Payload []byte
	Sender  string
	At      time.Time
}

// Source yields packets of a single feed. Receive blocks until a packet
// arrives, the context is done or the source is closed. It never returns an
// empty payload without an error.
type Source interface {
	Receive(ctx context.Context) (Packet, error)
	Close() error
}

// Pipe is an in-process Source fed by Send.
type Pipe struct {
	ch     chan Packet
	done   chan struct{}
	closer sync.Once
}

// NewPipe creates a pipe buffering up to size packets.
func NewPipe(size int) *Pipe {
	return &Pipe{
		ch:   make(chan Packet, size),
		done: make(chan struct{}),
	}
}

// Send queues a packet. It blocks while the buffer is full and drops the
// packet once the pipe is closed.
func (p *Pipe) Send(pkt Packet) {
	if pkt.At.IsZero() {
		pkt.At = time.Now()
	}
	select {
	case p.ch <- pkt:
	case <-p.done:
	}
}

func (p *Pipe) Receive(ctx context.Context) (Packet, error) {
	for {
		select {
		case pkt := <-p.ch:
			if len(pkt.Payload) == 0 {
				continue
			}
			return pkt, nil
		case <-p.done:
			return Packet{}, ErrClosed
		case <-ctx.Done():
			return Packet{}, ctx.Err()
		}
	}
}

func (p *Pipe) Close() error {
	p.closer.Do(func() { close(p.done) })
	return nil
}
