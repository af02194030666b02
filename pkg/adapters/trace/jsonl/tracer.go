package jsonl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sgttomas/chirality-semantic-framework/internal/domain"
	"github.com/sgttomas/chirality-semantic-framework/internal/ports"
)

// Tracer is an append-only JSONL trace sink shared by arbitrarily many
// concurrent cell computations. It writes one line per StageEntry into
// <base>/<session_id>/<scope>-<date>-<time>.jsonl, rotating to a fresh file
// once the active file exceeds the size threshold, and suppresses duplicate
// entries within a bounded content-hash window.
//
// One mutex covers the dedupe check and the file append, so no duplicate
// survives a race between the hash check and the write, and no two writers
// interleave partial lines. The lock is never held across a blocking
// resolver call; cancellation therefore cannot strand it mid-write.
type Tracer struct {
	sessionID string
	scope     string
	dir       string
	maxBytes  int64

	logger  *zap.Logger
	metrics ports.MetricsCollector

	mu        sync.Mutex
	seq       uint64
	file      *os.File
	fileName  string
	written   int64
	rotations int
	dedupe    *dedupeWindow
	closed    bool
}

// Options configures a Tracer.
type Options struct {
	// MaxFileBytes is the rotation threshold for the active file.
	MaxFileBytes int64
	// DedupeCapacity bounds the content-hash window. Oldest-inserted hashes
	// are evicted first once full; the window is approximate by design.
	DedupeCapacity int
	// Metrics is optional.
	Metrics ports.MetricsCollector
}

const (
	defaultMaxFileBytes   = 10 << 20
	defaultDedupeCapacity = 4096
)

// New opens a tracer for one logical run. sessionID becomes the directory
// component of the trace path; scope is the leading filename component (the
// matrix name for single-matrix runs, "valley" for full runs).
func New(baseDir, sessionID, scope string, logger *zap.Logger, opts Options) (*Tracer, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if scope == "" {
		scope = "valley"
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = defaultMaxFileBytes
	}
	if opts.DedupeCapacity <= 0 {
		opts.DedupeCapacity = defaultDedupeCapacity
	}

	dir := filepath.Join(baseDir, sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	t := &Tracer{
		sessionID: sessionID,
		scope:     scope,
		dir:       dir,
		maxBytes:  opts.MaxFileBytes,
		logger:    logger,
		metrics:   opts.Metrics,
		dedupe:    newDedupeWindow(opts.DedupeCapacity),
	}
	if err := t.openFile(); err != nil {
		return nil, err
	}

	logger.Info("trace sink opened",
		zap.String("session_id", sessionID),
		zap.String("scope", scope),
		zap.String("file", t.fileName),
		zap.Int64("max_file_bytes", t.maxBytes),
		zap.Int("dedupe_capacity", opts.DedupeCapacity))

	return t, nil
}

// RecordStage serializes one StageEntry to the active trace file. Duplicate
// content within the dedupe window is a no-op. Safe for concurrent use.
func (t *Tracer) RecordStage(entry domain.StageEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &domain.TraceWriteError{Err: fmt.Errorf("tracer is closed")}
	}

	hash := entry.ContentHash()
	if t.dedupe.Seen(hash) {
		if t.metrics != nil {
			t.metrics.RecordTraceDedupeHit()
		}
		return nil
	}

	t.seq++
	record := domain.TraceRecord{
		Sequence:  t.seq,
		SessionID: t.sessionID,
		Matrix:    entry.Coordinates.Matrix,
		Row:       entry.Coordinates.Row,
		Col:       entry.Coordinates.Col,
		StageKind: entry.Kind,
		Timestamp: entry.Timestamp,
		Inputs:    entry.Inputs,
		Outputs:   entry.Outputs,
		RowLabel:  entry.Coordinates.RowLabel,
		ColLabel:  entry.Coordinates.ColLabel,
		Warnings:  entry.Warnings,
	}

	line, err := json.Marshal(record)
	if err != nil {
		t.seq--
		return &domain.TraceWriteError{Err: fmt.Errorf("failed to marshal trace record: %w", err)}
	}
	line = append(line, '\n')

	if t.written > 0 && t.written+int64(len(line)) > t.maxBytes {
		if err := t.rotate(); err != nil {
			t.seq--
			return &domain.TraceWriteError{Err: err}
		}
	}

	n, err := t.file.Write(line)
	t.written += int64(n)
	if err != nil {
		t.seq--
		return &domain.TraceWriteError{Err: fmt.Errorf("failed to append trace record: %w", err)}
	}

	t.dedupe.Add(hash)
	if t.metrics != nil {
		t.metrics.RecordTraceWrite()
	}
	return nil
}

// Close flushes and closes the currently active file. Older rotated files
// were already closed during rotation.
func (t *Tracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if err := t.file.Sync(); err != nil {
		t.file.Close()
		return &domain.TraceWriteError{Err: fmt.Errorf("failed to flush trace file: %w", err)}
	}
	if err := t.file.Close(); err != nil {
		return &domain.TraceWriteError{Err: fmt.Errorf("failed to close trace file: %w", err)}
	}

	t.logger.Info("trace sink closed",
		zap.String("session_id", t.sessionID),
		zap.Uint64("records", t.seq),
		zap.Int("rotations", t.rotations))
	return nil
}

// Dir returns the session trace directory.
func (t *Tracer) Dir() string { return t.dir }

// rotate closes the active file and opens a fresh one. The old file stays
// on disk; in-flight writes cannot be lost because rotation happens under
// the same lock as appends.
func (t *Tracer) rotate() error {
	if err := t.file.Sync(); err != nil {
		return fmt.Errorf("failed to flush before rotation: %w", err)
	}
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("failed to close rotated file: %w", err)
	}

	t.rotations++
	if t.metrics != nil {
		t.metrics.RecordTraceRotation()
	}
	old := t.fileName
	if err := t.openFile(); err != nil {
		return err
	}

	t.logger.Info("trace file rotated",
		zap.String("session_id", t.sessionID),
		zap.String("old_file", old),
		zap.String("new_file", t.fileName))
	return nil
}

func (t *Tracer) openFile() error {
	const flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND | os.O_EXCL

	base := fmt.Sprintf("%s-%s", t.scope, time.Now().Format("20060102-150405"))
	name := base + ".jsonl"
	file, err := os.OpenFile(filepath.Join(t.dir, name), flags, 0o644)
	// Same-second rotations collide on the timestamped name; disambiguate
	// with a numeric suffix.
	for n := 1; errors.Is(err, fs.ErrExist); n++ {
		name = fmt.Sprintf("%s-%03d.jsonl", base, n)
		file, err = os.OpenFile(filepath.Join(t.dir, name), flags, 0o644)
	}
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}

	t.file = file
	t.fileName = name
	t.written = 0
	return nil
}

// dedupeWindow is a fixed-capacity set of content hashes with FIFO
// eviction: oldest-inserted hashes leave first once the window is full.
type dedupeWindow struct {
	capacity int
	set      map[string]struct{}
	order    []string
	head     int
}

func newDedupeWindow(capacity int) *dedupeWindow {
	return &dedupeWindow{
		capacity: capacity,
		set:      make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

func (w *dedupeWindow) Seen(hash string) bool {
	_, ok := w.set[hash]
	return ok
}

func (w *dedupeWindow) Add(hash string) {
	if _, ok := w.set[hash]; ok {
		return
	}
	if len(w.set) >= w.capacity {
		oldest := w.order[w.head]
		delete(w.set, oldest)
		w.order[w.head] = hash
		w.head = (w.head + 1) % w.capacity
	} else {
		w.order = append(w.order, hash)
	}
	w.set[hash] = struct{}{}
}
