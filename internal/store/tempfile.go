package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vocalize/tts-gateway/internal/observability"
)

// Default lifecycle parameters for staged audio files
const (
	DefaultSweepMaxAge = time.Hour
	DefaultDeleteDelay = 5 * time.Second
)

// FileRef identifies a staged audio file. The store owns the file from Save
// until Delete or a sweep removes it.
type FileRef struct {
	Path      string
	CreatedAt time.Time
	SizeBytes int64
}

// TempFiles stages generated audio in a local directory between synthesis and
// delivery. Deletion is idempotent and never surfaces errors to callers; the
// hourly sweep is the backstop for anything a delayed delete missed.
type TempFiles struct {
	dir         string
	deleteDelay time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// NewTempFiles creates the store, creating dir (and parents) if absent
func NewTempFiles(dir string, deleteDelay time.Duration) (*TempFiles, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp dir %s: %w", dir, err)
	}
	if deleteDelay <= 0 {
		deleteDelay = DefaultDeleteDelay
	}

	return &TempFiles{
		dir:         dir,
		deleteDelay: deleteDelay,
		pending:     make(map[string]*time.Timer),
	}, nil
}

// Dir returns the directory backing the store
func (t *TempFiles) Dir() string {
	return t.dir
}

// Save writes audio to a new file named from a millisecond timestamp and the
// voice identifier. On the rare same-millisecond collision for one voice the
// timestamp is bumped until the exclusive create succeeds.
func (t *TempFiles) Save(audio []byte, voice string) (*FileRef, error) {
	now := time.Now()
	ms := now.UnixMilli()

	var f *os.File
	var path string
	for {
		path = filepath.Join(t.dir, fmt.Sprintf("audio_%d_%s.mp3", ms, voice))

		var err error
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("creating audio file: %w", err)
		}
		ms++
	}

	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("closing audio file: %w", err)
	}

	ref := &FileRef{
		Path:      path,
		CreatedAt: now,
		SizeBytes: int64(len(audio)),
	}

	observability.RecordFileStaged()
	log.Debug().
		Str("file", filepath.Base(path)).
		Int64("size_bytes", ref.SizeBytes).
		Msg("Audio file staged")

	return ref, nil
}

// Delete removes the referenced file. A file that is already gone is not an
// error; failures are logged and swallowed.
func (t *TempFiles) Delete(ref *FileRef) {
	if ref == nil {
		return
	}

	t.cancelPending(ref.Path)

	err := os.Remove(ref.Path)
	switch {
	case err == nil:
		observability.RecordFileRemoved()
		log.Debug().Str("file", filepath.Base(ref.Path)).Msg("Cleaned up audio file")
	case os.IsNotExist(err):
		// Already removed by a sweep or an earlier delete
	default:
		log.Warn().Err(err).Str("file", filepath.Base(ref.Path)).Msg("Failed to clean up audio file")
	}
}

// ScheduleDelete removes the referenced file after the configured delay,
// giving the outbound transport time to finish streaming it. The timer handle
// is retained so Close can cancel pending deletes at shutdown.
func (t *TempFiles) ScheduleDelete(ref *FileRef) {
	if ref == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	if timer, ok := t.pending[ref.Path]; ok {
		timer.Stop()
	}

	t.pending[ref.Path] = time.AfterFunc(t.deleteDelay, func() {
		t.mu.Lock()
		delete(t.pending, ref.Path)
		t.mu.Unlock()

		t.Delete(&FileRef{Path: ref.Path})
	})
}

// Sweep deletes every file in the store older than maxAge, returning how many
// were removed. maxAge zero removes everything (used at shutdown).
func (t *TempFiles) Sweep(maxAge time.Duration) int {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("dir", t.dir).Msg("Failed to list temp dir for sweep")
		}
		return 0
	}

	now := time.Now()
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(t.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if now.Sub(info.ModTime()) > maxAge {
			if err := os.Remove(path); err != nil {
				if !os.IsNotExist(err) {
					log.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to sweep audio file")
				}
				continue
			}
			removed++
			log.Debug().Str("file", entry.Name()).Msg("Swept old audio file")
		}
	}

	if removed > 0 {
		observability.RecordSweep(removed)
		log.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("Temp file sweep completed")
	}

	return removed
}

// RunSweeper sweeps at the given interval until stop is closed
func (t *TempFiles) RunSweeper(interval, maxAge time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.Sweep(maxAge)
		case <-stop:
			return
		}
	}
}

// Close cancels pending delayed deletes and removes every staged file.
// Safe to call more than once.
func (t *TempFiles) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for path, timer := range t.pending {
		timer.Stop()
		delete(t.pending, path)
	}
	t.mu.Unlock()

	t.Sweep(0)
}

func (t *TempFiles) cancelPending(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.pending[path]; ok {
		timer.Stop()
		delete(t.pending, path)
	}
}
