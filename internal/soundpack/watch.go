package soundpack

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/robocup-ssl/audioref/internal/audio"
	"github.com/robocup-ssl/audioref/internal/cue"
)

// Live is a cue.Library whose pack can be swapped while cues resolve.
type Live struct {
	pack atomic.Pointer[Pack]
}

// NewLive wraps an already loaded pack.
func NewLive(p *Pack) *Live {
	l := &Live{}
	l.pack.Store(p)
	return l
}

// Pack returns the current pack, nil if none was stored.
func (l *Live) Pack() *Pack {
	return l.pack.Load()
}

// Store swaps in a new pack.
func (l *Live) Store(p *Pack) {
	l.pack.Store(p)
}

func (l *Live) Templates(keys ...string) ([]string, error) {
	p := l.pack.Load()
	if p == nil {
		return nil, ErrNoPack
	}
	return p.Templates(keys...)
}

func (l *Live) Clip(name string) (*audio.Clip, error) {
	p := l.pack.Load()
	if p == nil {
		return nil, ErrNoPack
	}
	return p.Clip(name)
}

var _ cue.Library = (*Live)(nil)

// reloadDelay collapses the burst of events editors produce on save.
const reloadDelay = 250 * time.Millisecond

// Watch reloads the pack below root whenever its config file is written
// and stores it in live. A pack that fails to load is logged and the
// previous one stays active. Watch blocks until ctx is done.
func Watch(ctx context.Context, root string, format audio.Format, live *Live) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating fsnotify watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(root); err != nil {
		return fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}
	log.Info("fsnotify watching dir", "dir", root)

	config := filepath.Join(root, ConfigFile)
	reload := make(chan struct{}, 1)
	var pending *time.Timer

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != config {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)

			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDelay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			p, err := Load(root, format)
			if err != nil {
				log.Error("Failed to reload sound pack, keeping previous", "error", err)
				continue
			}
			live.Store(p)
			log.Info("Sound pack reloaded", "dir", root)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", root, "error", err)
		}
	}
}
