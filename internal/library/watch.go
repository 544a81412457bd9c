package library

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// EventKind says what changed on disk.
type EventKind int

const (
	// ChaptersChanged means chapters were added, removed or renamed.
	ChaptersChanged EventKind = iota
	// CurrentChanged means the current chapter's file was written.
	CurrentChanged
)

// Event is delivered to Watch callbacks.
type Event struct {
	Kind    EventKind
	Chapter Chapter // Set for CurrentChanged
}

// Watch reports changes under the library root until ctx is done.
func (l *Library) Watch(ctx context.Context, onChange func(Event)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating fsnotify watcher: %w", err)
	}

	dir := l.root
	if l.single {
		dir = filepath.Dir(l.root)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}
	l.logger.Info("fsnotify watching dir", "dir", dir)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				l.logger.Debug("fsnotify dir unwatched", "dir", dir)
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				l.handle(event, onChange)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Debug("fsnotify error", "dir", dir, "error", err)
			}
		}
	}()
	return nil
}

func (l *Library) handle(event fsnotify.Event, onChange func(Event)) {
	if !supported(event.Name) {
		return
	}
	l.logger.Debug("fsnotify event", "file", event.Name, "event", event.Op)

	if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if l.single {
			if event.Name == l.root && event.Has(fsnotify.Create) {
				l.notifyCurrent(onChange)
			}
			return
		}
		if err := l.Rescan(); err != nil {
			l.logger.Warn("Rescan failed", "err", err)
			return
		}
		onChange(Event{Kind: ChaptersChanged})
		return
	}

	if event.Has(fsnotify.Write) {
		if cur, ok := l.Current(); ok && cur.Path == event.Name {
			l.notifyCurrent(onChange)
		}
	}
}

func (l *Library) notifyCurrent(onChange func(Event)) {
	if cur, ok := l.Current(); ok {
		onChange(Event{Kind: CurrentChanged, Chapter: cur})
	}
}
