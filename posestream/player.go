package posestream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/phanxgames/tinsel"
)

// ReadRecording loads every record of a .jsonl.zst recording.
func ReadRecording(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var out []Record
	for line := 1; sc.Scan(); line++ {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: unmarshal: %w", filepath.Base(path), line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// minLoopPeriod is the shortest time one looped pass may take, so a
// recording whose offsets are all zero publishes once per frame instead of
// spinning.
const minLoopPeriod = time.Second / 60

// Player replays a recording with its original inter-frame timing.
type Player struct {
	records []Record
	// Speed scales playback; 2 plays twice as fast. Zero or negative means 1.
	Speed float64
	// Loop restarts from the first record after the last one.
	Loop bool
}

// NewPlayer loads path for playback.
func NewPlayer(path string) (*Player, error) {
	recs, err := ReadRecording(path)
	if err != nil {
		return nil, fmt.Errorf("player: %w", err)
	}
	return &Player{records: recs, Speed: 1}, nil
}

// Len returns the number of records.
func (p *Player) Len() int {
	return len(p.records)
}

// Play publishes every record at its offset until the recording ends or
// ctx is cancelled. A publish error stops playback and is returned.
func (p *Player) Play(ctx context.Context, publish func(tinsel.PoseFrame) error) error {
	if len(p.records) == 0 {
		return nil
	}
	speed := p.Speed
	if speed <= 0 {
		speed = 1
	}
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	sleepUntil := func(due time.Time) error {
		wait := time.Until(due)
		if wait <= 0 {
			return ctx.Err()
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	}

	for {
		start := time.Now()
		for _, rec := range p.records {
			due := start.Add(time.Duration(float64(rec.AtMS) / speed * float64(time.Millisecond)))
			if err := sleepUntil(due); err != nil {
				return err
			}
			if err := publish(rec.Frame); err != nil {
				return err
			}
		}
		if !p.Loop {
			return nil
		}
		if err := sleepUntil(start.Add(minLoopPeriod)); err != nil {
			return err
		}
	}
}

// PlayInto replays into a mailbox, clearing it when playback ends so the
// field sees the producer go away.
func (p *Player) PlayInto(ctx context.Context, mbox *tinsel.PoseMailbox) error {
	defer mbox.Clear()
	return p.Play(ctx, func(f tinsel.PoseFrame) error {
		err := mbox.Publish(f)
		if err != nil && !errors.Is(err, tinsel.ErrStreamClosed) {
			return nil // invalid frames are skipped like live ones
		}
		return err
	})
}
