package signal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"mdnotes/internal/notes"
)

// requestExt marks a sync request file.
const requestExt = ".sync"

// DirChannel carries sync requests between processes on one machine. A
// request is an empty <uuid>.sync file dropped into a shared directory; the
// main process watches the directory and consumes the files.
type DirChannel struct {
	dir    string
	logger notes.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ notes.SignalChannel = (*DirChannel)(nil)

// NewDirChannel creates dir if needed.
func NewDirChannel(dir string, logger notes.Logger) (*DirChannel, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create signal directory: %w", err)
	}
	if logger == nil {
		logger = notes.NewNopLogger()
	}
	return &DirChannel{dir: dir, logger: logger}, nil
}

// SendSyncRequest drops a request file. It is written under a temporary
// name and renamed so the watcher never sees it half written.
func (c *DirChannel) SendSyncRequest(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := uuid.NewString() + requestExt
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating sync request: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("creating sync request: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(c.dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publishing sync request: %w", err)
	}
	return nil
}

// OnSyncRequest watches the directory and calls fn once per request file.
// Requests left over from before the handler was registered are delivered
// first, coalesced into one call.
func (c *DirChannel) OnSyncRequest(fn func()) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.watcher != nil {
		return nil, fmt.Errorf("sync request handler already registered")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(c.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch signal directory %s: %w", c.dir, err)
	}

	c.watcher = watcher
	c.done = make(chan struct{})

	if c.drainPending() > 0 {
		fn()
	}

	c.wg.Add(1)
	go c.processEvents(watcher, c.done, fn)

	return c.stop, nil
}

func (c *DirChannel) stop() {
	c.mu.Lock()
	if c.watcher == nil {
		c.mu.Unlock()
		return
	}
	watcher := c.watcher
	c.watcher = nil
	close(c.done)
	c.mu.Unlock()

	if err := watcher.Close(); err != nil {
		c.logger.Warn("closing signal watcher failed", "error", err)
	}
	c.wg.Wait()
}

func (c *DirChannel) processEvents(watcher *fsnotify.Watcher, done chan struct{}, fn func()) {
	defer c.wg.Done()

	for {
		select {
		case <-done:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) || !isRequest(event.Name) {
				continue
			}
			if c.consume(event.Name) {
				fn()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("signal watcher error", "dir", c.dir, "error", err)
		}
	}
}

// drainPending removes request files already present and returns how many
// were found.
func (c *DirChannel) drainPending() int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Warn("reading signal directory failed", "dir", c.dir, "error", err)
		return 0
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !isRequest(e.Name()) {
			continue
		}
		if c.consume(filepath.Join(c.dir, e.Name())) {
			n++
		}
	}
	return n
}

// consume removes a request file. false means another consumer got it first.
func (c *DirChannel) consume(path string) bool {
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("removing sync request failed", "path", path, "error", err)
		}
		return false
	}
	return true
}

func isRequest(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, requestExt) && !strings.HasPrefix(base, ".")
}
