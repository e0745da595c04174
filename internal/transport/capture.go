package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
)

// A capture is a zstd stream of records, each:
//
//	feed    uint8 length + bytes
//	at      int64 unix nanoseconds
//	sender  uint16 length + bytes
//	payload uint32 length + bytes
//
// all integers big endian.

// Record is one captured packet.
type Record struct {
	Feed string
	Packet
}

// CaptureWriter appends packets of any feed to a capture file.
type CaptureWriter struct {
	mu      sync.Mutex
	f       *os.File
	enc     *zstd.Encoder
	records int64
}

// CreateCapture creates (or truncates) a capture file.
func CreateCapture(path string) (*CaptureWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	log.Info("Recording feeds", "path", path)
	return &CaptureWriter{f: f, enc: enc}, nil
}

// Write appends one record and flushes it to the file.
func (w *CaptureWriter) Write(feed string, pkt Packet) error {
	if len(feed) > 0xff || len(pkt.Sender) > 0xffff {
		return fmt.Errorf("capture record too large")
	}

	buf := make([]byte, 0, 1+len(feed)+8+2+len(pkt.Sender)+4+len(pkt.Payload))
	buf = append(buf, byte(len(feed)))
	buf = append(buf, feed...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(pkt.At.UnixNano()))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(pkt.Sender)))
	buf = append(buf, pkt.Sender...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(pkt.Payload)))
	buf = append(buf, pkt.Payload...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return ErrClosed
	}
	if _, err := w.enc.Write(buf); err != nil {
		return err
	}
	w.records++
	return w.enc.Flush()
}

// Records returns how many records were written.
func (w *CaptureWriter) Records() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

func (w *CaptureWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return nil
	}
	err := w.enc.Close()
	w.enc = nil
	return errors.Join(err, w.f.Close())
}

// recording tees a source into a capture.
type recording struct {
	Source
	feed string
	w    *CaptureWriter
}

// Tee wraps src so every packet it yields is also written to w.
// Capture write errors are logged and never reach the caller.
func Tee(src Source, feed string, w *CaptureWriter) Source {
	return &recording{Source: src, feed: feed, w: w}
}

func (r *recording) Receive(ctx context.Context) (Packet, error) {
	pkt, err := r.Source.Receive(ctx)
	if err != nil {
		return pkt, err
	}
	if err := r.w.Write(r.feed, pkt); err != nil {
		log.Warn("Failed to record packet", "feed", r.feed, "error", err)
	}
	return pkt, nil
}

// ReadCapture decodes every record of a capture file.
func ReadCapture(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture: %w", err)
	}
	defer f.Close() //nolint:errcheck

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	var (
		r       = bufio.NewReader(dec)
		records []Record
		size    int
	)
	for {
		rec, err := readRecord(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, fmt.Errorf("capture %s record %d: %w", path, len(records), err)
		}
		records = append(records, rec)
		size += len(rec.Payload)
	}

	log.Info("Loaded capture", "path", path, "records", len(records), "payload", humanize.Bytes(uint64(size)))
	return records, nil
}

func readRecord(r *bufio.Reader) (Record, error) {
	var rec Record

	n, err := r.ReadByte()
	if err != nil {
		return rec, err
	}
	feed := make([]byte, n)
	if _, err := io.ReadFull(r, feed); err != nil {
		return rec, unexpected(err)
	}
	rec.Feed = string(feed)

	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:8]); err != nil {
		return rec, unexpected(err)
	}
	rec.At = time.Unix(0, int64(binary.BigEndian.Uint64(hdr[:8])))

	if _, err := io.ReadFull(r, hdr[:2]); err != nil {
		return rec, unexpected(err)
	}
	sender := make([]byte, binary.BigEndian.Uint16(hdr[:2]))
	if _, err := io.ReadFull(r, sender); err != nil {
		return rec, unexpected(err)
	}
	rec.Sender = string(sender)

	if _, err := io.ReadFull(r, hdr[:4]); err != nil {
		return rec, unexpected(err)
	}
	rec.Payload = make([]byte, binary.BigEndian.Uint32(hdr[:4]))
	if _, err := io.ReadFull(r, rec.Payload); err != nil {
		return rec, unexpected(err)
	}
	return rec, nil
}

// unexpected turns EOF in the middle of a record into ErrUnexpectedEOF.
func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
