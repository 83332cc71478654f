// Command tinsel-tty renders a formation field in the terminal. Terminals
// report no key releases, so hand state toggles:
//
//	space        toggle the control hand open (scatter) or closed
//	arrows       move the grab cursor
//	enter        toggle the grab pinch
//	< >          move the control hand, changing the spin
//	r            release the focused note
//	esc, ctrl-c  quit
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"github.com/phanxgames/tinsel"
	"github.com/phanxgames/tinsel/internal/driver"
)

const sampleRate = beep.SampleRate(44100)

type groupStyle struct {
	r     rune
	style tcell.Style
	// layer orders drawing; higher layers draw over lower ones
	layer int
}

var groupStyles = map[string]groupStyle{
	"canopy": {'.', tcell.StyleDefault.Foreground(tcell.NewRGBColor(40, 170, 90)), 1},
	"ribbon": {'~', tcell.StyleDefault.Foreground(tcell.NewRGBColor(255, 235, 180)), 2},
	"green":  {'o', tcell.StyleDefault.Foreground(tcell.ColorGreen), 3},
	"red":    {'o', tcell.StyleDefault.Foreground(tcell.ColorRed), 4},
	"gold":   {'*', tcell.StyleDefault.Foreground(tcell.ColorYellow), 5},
}

// defaultGroupStyle is used for groups added in YAML under other names.
var defaultGroupStyle = groupStyle{'+', tcell.StyleDefault.Foreground(tcell.ColorWhite), 0}

func styleFor(name string) groupStyle {
	if gs, ok := groupStyles[name]; ok {
		return gs
	}
	return defaultGroupStyle
}

// drawOrder returns groups sorted by layer, keeping config order within a
// layer.
func drawOrder(groups []*tinsel.EntityGroup) []*tinsel.EntityGroup {
	out := slices.Clone(groups)
	slices.SortStableFunc(out, func(a, b *tinsel.EntityGroup) int {
		return styleFor(a.Name()).layer - styleFor(b.Name()).layer
	})
	return out
}

type viewer struct {
	screen tcell.Screen
	drv    *driver.Driver
	field  *tinsel.Field
	log    *log.Logger

	emulate  bool
	open     bool
	pinch    bool
	cursorX  int
	cursorY  int
	controlX float64

	audio  bool
	chimes chan tinsel.EventType

	points []tinsel.Vec3
}

func newViewer(drv *driver.Driver, emulate bool, logger *log.Logger) (*viewer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	v := &viewer{
		screen:  screen,
		drv:     drv,
		field:   drv.Field,
		log:     logger,
		emulate: emulate,
		chimes:  make(chan tinsel.EventType, 8),
	}
	w, h := screen.Size()
	v.cursorX, v.cursorY = w/2, h/2

	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		// Non-fatal, the viewer runs without sound
		logger.Printf("audio initialization failed: %v", err)
	} else {
		v.audio = true
	}
	v.field.SetEventSink(tinsel.EventSinkFunc(func(e tinsel.FieldEvent) {
		select {
		case v.chimes <- e.Type:
		default:
		}
	}))
	return v, nil
}

// chime plays a short tone for focus and formation events.
func (v *viewer) chime(t tinsel.EventType) {
	if !v.audio {
		return
	}
	var freq float64
	switch t {
	case tinsel.EventFocusAcquired:
		freq = 880
	case tinsel.EventFocusReleased:
		freq = 660
	case tinsel.EventFormationAdvanced:
		freq = 1320
	default:
		return
	}
	sine, err := generators.SineTone(sampleRate, freq)
	if err != nil {
		return
	}
	speaker.Play(beep.Take(sampleRate.N(60*time.Millisecond), sine))
}

func (v *viewer) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			v.cursorY--
		case tcell.KeyDown:
			v.cursorY++
		case tcell.KeyLeft:
			v.cursorX--
		case tcell.KeyRight:
			v.cursorX++
		case tcell.KeyEnter:
			v.pinch = !v.pinch
		case tcell.KeyRune:
			switch ev.Rune() {
			case ' ':
				v.open = !v.open
			case '<':
				v.controlX -= 1
			case '>':
				v.controlX += 1
			case 'r':
				v.field.ReleaseFocus()
				v.pinch = false
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *viewer) injectHands() {
	cfg := v.field.Config()
	w, h := v.screen.Size()
	var frame tinsel.PoseFrame
	control := &tinsel.HandSample{
		Position: tinsel.Vec3{X: cfg.Rotation.NeutralX + v.controlX, Z: tinsel.HandDepth},
		Pinching: !v.open,
	}
	var grab *tinsel.HandSample
	// rows are about twice as tall as columns
	if p, ok := v.field.Viewer().Unproject(float64(v.cursorX), float64(v.cursorY*2), float64(w), float64(h*2), tinsel.HandDepth); ok {
		grab = &tinsel.HandSample{Position: p, Pinching: v.pinch}
	}
	for _, hs := range []struct {
		hand tinsel.Hand
		s    *tinsel.HandSample
	}{{cfg.Pose.ControlHand, control}, {cfg.Pose.GrabHand, grab}} {
		if hs.hand == tinsel.HandLeft {
			frame.Left = hs.s
		} else {
			frame.Right = hs.s
		}
	}
	v.field.InjectPose(frame)
}

func (v *viewer) draw() {
	v.screen.Clear()
	w, h := v.screen.Size()
	fw, fh := float64(w), float64(h*2)
	cam := v.field.Viewer()

	for _, grp := range drawOrder(v.field.Groups()) {
		gs := styleFor(grp.Name())
		v.points = grp.WorldPositions(v.points[:0])
		for _, p := range v.points {
			sx, sy, _, ok := cam.Project(p, fw, fh)
			if !ok {
				continue
			}
			v.screen.SetContent(int(sx), int(sy)/2, gs.r, nil, gs.style)
		}
	}

	notes := v.field.Notes()
	for id := 0; id < notes.Len(); id++ {
		n, _ := notes.Note(id)
		at, _ := notes.WorldPosition(id)
		sx, sy, _, ok := cam.Project(at, fw, fh)
		if !ok {
			continue
		}
		style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
		if n.State == tinsel.NoteFocused {
			style = style.Reverse(true)
		}
		v.drawText(int(sx), int(sy)/2, n.Text, style)
	}

	if v.emulate {
		cursor := tcell.StyleDefault.Foreground(tcell.ColorAqua)
		if v.pinch {
			cursor = cursor.Reverse(true)
		}
		v.screen.SetContent(v.cursorX, v.cursorY, '+', nil, cursor)
	}
	v.drawText(0, 0, fmt.Sprintf("chaos %.2f  mode %s  spin %.2f  open %v  pinch %v",
		v.field.Chaos(), v.field.Mode(), v.field.RotationRate(), v.open, v.pinch),
		tcell.StyleDefault.Foreground(tcell.ColorGray))
	v.screen.Show()
}

func (v *viewer) drawText(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		v.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func (v *viewer) run() {
	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(16 * time.Millisecond) // ~60 FPS
	defer ticker.Stop()
	for {
		select {
		case ev := <-events:
			if !v.handleInput(ev) {
				return
			}
		case t := <-v.chimes:
			v.chime(t)
		case now := <-ticker.C:
			if v.emulate {
				v.injectHands()
			}
			v.field.Update(v.drv.Clock(now))
			v.draw()
		}
	}
}

func main() {
	var (
		configPath = flag.String("config", "", "path to tinsel.yaml (default: built-in constants)")
		listen     = flag.String("listen", "", "pose ingest address, e.g. :8765 (empty to disable)")
		record     = flag.String("record", "", "record ingested poses to this .jsonl.zst file")
		replay     = flag.String("replay", "", "replay poses from a .jsonl.zst recording")
		script     = flag.String("script", "", "JSON pose script to run")
		logPath    = flag.String("log", "", "log file (the terminal is busy rendering)")
	)
	flag.Parse()

	var out io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open log:", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logger := log.New(out, "[tinsel] ", log.LstdFlags|log.Lmicroseconds)

	drv, err := driver.Start(context.Background(), driver.Options{
		ConfigPath: *configPath,
		Listen:     *listen,
		RecordPath: *record,
		ReplayPath: *replay,
		ScriptPath: *script,
	}, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "start:", err)
		os.Exit(1)
	}
	defer drv.Close()

	v, err := newViewer(drv, *listen == "" && *replay == "" && *script == "", logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "terminal:", err)
		os.Exit(1)
	}
	defer v.screen.Fini()
	v.run()
}
