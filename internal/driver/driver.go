// Package driver wires a tinsel.Field to its pose inputs for the viewer
// commands: config loading, the WebSocket ingest, recording, replay and
// pose scripts.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/phanxgames/tinsel"
	"github.com/phanxgames/tinsel/posestream"
)

// Options selects the inputs of a session. Empty paths disable the
// corresponding feature.
type Options struct {
	ConfigPath  string
	Listen      string // pose ingest address, e.g. ":8765"
	RecordPath  string
	ReplayPath  string
	ReplaySpeed float64
	ReplayLoop  bool
	ScriptPath  string
	Debug       bool
}

// Driver owns a running Field and its producers.
type Driver struct {
	Field   *tinsel.Field
	Mailbox *tinsel.PoseMailbox
	Server  *posestream.Server
	// Addr is the bound ingest address when Listen was set.
	Addr string

	log      *log.Logger
	http     *http.Server
	recorder *posestream.Recorder
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	start time.Time
	last  time.Time
}

// Start loads the config and starts every requested producer.
func Start(ctx context.Context, opts Options, logger *log.Logger) (*Driver, error) {
	if opts.RecordPath != "" && opts.Listen == "" {
		return nil, errors.New("recording needs a pose ingest address")
	}
	cfg := tinsel.DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = tinsel.LoadConfig(opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	if opts.Debug {
		cfg.Debug = true
	}

	mbox := tinsel.NewPoseMailbox()
	field, err := tinsel.NewField(cfg, mbox)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	d := &Driver{Field: field, Mailbox: mbox, log: logger, cancel: cancel}

	if opts.ScriptPath != "" {
		raw, err := os.ReadFile(opts.ScriptPath)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("read script: %w", err)
		}
		script, err := tinsel.LoadPoseScript(raw)
		if err != nil {
			cancel()
			return nil, err
		}
		field.SetScript(script)
	}

	if opts.RecordPath != "" {
		if d.recorder, err = posestream.NewRecorder(opts.RecordPath); err != nil {
			cancel()
			return nil, err
		}
	}

	if opts.Listen != "" {
		if d.Server, err = posestream.NewServer(mbox, cfg.Pose.StaleAfter, logger); err != nil {
			d.Close()
			return nil, err
		}
		d.Server.SetRecorder(d.recorder)
		ln, err := net.Listen("tcp", opts.Listen)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("listen %s: %w", opts.Listen, err)
		}
		d.Addr = ln.Addr().String()
		mux := http.NewServeMux()
		mux.Handle("/v1/pose", d.Server.Handler())
		d.http = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			logger.Printf("pose ingest on ws://%s/v1/pose", ln.Addr())
			if err := d.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("pose ingest: %v", err)
			}
		}()
	}

	if opts.ReplayPath != "" {
		player, err := posestream.NewPlayer(opts.ReplayPath)
		if err != nil {
			d.Close()
			return nil, err
		}
		player.Speed = opts.ReplaySpeed
		player.Loop = opts.ReplayLoop
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			logger.Printf("replaying %d frames from %s", player.Len(), opts.ReplayPath)
			if err := player.PlayInto(ctx, mbox); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("replay: %v", err)
			}
		}()
	}
	return d, nil
}

// Clock returns the frame clock for a frame rendered at now.
func (d *Driver) Clock(now time.Time) tinsel.FrameClock {
	if d.start.IsZero() {
		d.start, d.last = now, now
	}
	c := tinsel.FrameClock{
		Elapsed: now.Sub(d.start).Seconds(),
		Delta:   now.Sub(d.last).Seconds(),
	}
	d.last = now
	return c
}

// Close stops every producer and flushes the recording.
func (d *Driver) Close() error {
	d.cancel()
	if d.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = d.http.Shutdown(ctx)
		cancel()
	}
	d.wg.Wait()
	d.Mailbox.Close()
	if d.recorder != nil {
		if d.Server != nil {
			d.Server.SetRecorder(nil)
		}
		return d.recorder.Close()
	}
	return nil
}
