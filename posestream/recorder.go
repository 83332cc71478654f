package posestream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/phanxgames/tinsel"
)

// Record is one line of a recording: a frame and its offset from the
// first recorded frame.
type Record struct {
	AtMS  int64            `json:"at_ms"`
	Frame tinsel.PoseFrame `json:"frame"`
}

// Recorder writes pose frames as zstd-compressed JSONL (.jsonl.zst).
type Recorder struct {
	mu    sync.Mutex
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	start time.Time
	count int

	now func() time.Time
}

// NewRecorder creates (or truncates) path, making parent directories.
func NewRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recorder: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("recorder: %w", err)
	}
	return &Recorder{
		f:   f,
		enc: enc,
		w:   bufio.NewWriterSize(enc, 64*1024),
		now: time.Now,
	}, nil
}

// Write appends frame stamped with the time since the first Write.
func (r *Recorder) Write(frame tinsel.PoseFrame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return os.ErrClosed
	}

	now := r.now()
	if r.count == 0 {
		r.start = now
	}
	b, err := json.Marshal(Record{AtMS: now.Sub(r.start).Milliseconds(), Frame: frame})
	if err != nil {
		return err
	}
	if _, err := r.w.Write(b); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}
	r.count++
	return nil
}

// Count returns the number of frames written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes the stream and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	var first error
	if err := r.w.Flush(); err != nil {
		first = err
	}
	if err := r.enc.Close(); err != nil && first == nil {
		first = err
	}
	if err := r.f.Close(); err != nil && first == nil {
		first = err
	}
	r.w, r.enc, r.f = nil, nil, nil
	return first
}
