// Command tinsel opens a window showing a live formation field. Pose
// frames arrive over WebSocket (-listen), from a recording (-replay) or a
// pose script (-script); without them the mouse and keyboard stand in for
// the hands.
//
//	mouse         grab hand; hold the left button to pinch
//	space (held)  open control hand, scattering the field
//	left/right    move the control hand, changing the spin
//	typing        edits the focused note; enter or esc releases it
//	tab           orbit the viewer a quarter turn
//	f12           save a screenshot under -shots
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/tanema/gween/ease"

	"github.com/phanxgames/tinsel"
	"github.com/phanxgames/tinsel/internal/driver"
)

const (
	windowTitle = "tinsel"
	screenW     = 1280
	screenH     = 800
)

var background = color.RGBA{R: 6, G: 8, B: 20, A: 255}

var groupColors = map[string]color.RGBA{
	"gold":   {R: 255, G: 210, B: 80, A: 255},
	"red":    {R: 220, G: 40, B: 50, A: 255},
	"green":  {R: 40, G: 160, B: 80, A: 255},
	"canopy": {R: 60, G: 200, B: 120, A: 160},
	"ribbon": {R: 255, G: 235, B: 180, A: 200},
}

type game struct {
	drv   *driver.Driver
	field *tinsel.Field
	log   *log.Logger

	emulate  bool
	controlX float64
	width    int
	height   int

	points []tinsel.Vec3
	runes  []rune
	shots  *shooter
}

func (g *game) Update() error {
	if g.emulate {
		g.emulateHands()
	}
	g.editNote()
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		v := g.field.Viewer()
		d := v.Position.Sub(v.Target)
		v.OrbitTo(math.Atan2(d.X, d.Z)+math.Pi/2, 1.5, ease.InOutSine)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		g.shots.request(fmt.Sprintf("%s-%d", g.field.Mode(), g.field.Frame()))
	}
	g.field.Update(g.drv.Clock(time.Now()))
	return nil
}

// emulateHands turns mouse and keyboard state into one synthetic pose frame.
func (g *game) emulateHands() {
	cfg := g.field.Config()
	if ebiten.IsKeyPressed(ebiten.KeyLeft) {
		g.controlX -= 0.2
	}
	if ebiten.IsKeyPressed(ebiten.KeyRight) {
		g.controlX += 0.2
	}

	// space types into a focused note instead of opening the hand
	_, editing := g.field.FocusedNote()
	open := ebiten.IsKeyPressed(ebiten.KeySpace) && !editing

	var frame tinsel.PoseFrame
	control := &tinsel.HandSample{
		Position: tinsel.Vec3{X: cfg.Rotation.NeutralX + g.controlX, Z: tinsel.HandDepth},
		Pinching: !open,
	}
	var grab *tinsel.HandSample
	cx, cy := ebiten.CursorPosition()
	if p, ok := g.field.Viewer().Unproject(float64(cx), float64(cy), float64(g.width), float64(g.height), tinsel.HandDepth); ok {
		grab = &tinsel.HandSample{Position: p, Pinching: ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)}
	}
	assign := func(h tinsel.Hand, s *tinsel.HandSample) {
		if h == tinsel.HandLeft {
			frame.Left = s
		} else {
			frame.Right = s
		}
	}
	assign(cfg.Pose.ControlHand, control)
	assign(cfg.Pose.GrabHand, grab)
	g.field.InjectPose(frame)
}

func (g *game) editNote() {
	n, ok := g.field.FocusedNote()
	if !ok {
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.field.ReleaseFocus()
		return
	}
	text := []rune(n.Text)
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && len(text) > 0 {
		text = text[:len(text)-1]
	}
	g.runes = ebiten.AppendInputChars(g.runes[:0])
	text = append(text, g.runes...)
	if string(text) != n.Text {
		if err := g.field.SetNoteText(n.ID, string(text)); err != nil {
			g.log.Printf("edit note: %v", err)
		}
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	w, h := float64(g.width), float64(g.height)
	v := g.field.Viewer()
	focalPx := h / 2 / math.Tan(v.FOV*math.Pi/360)

	for _, grp := range g.field.Groups() {
		clr, ok := groupColors[grp.Name()]
		if !ok {
			clr = color.RGBA{R: 255, G: 255, B: 255, A: 255}
		}
		g.points = grp.WorldPositions(g.points[:0])
		for i, p := range g.points {
			sx, sy, depth, ok := v.Project(p, w, h)
			if !ok {
				continue
			}
			size := float32(math.Max(1, grp.Scale(i)*focalPx/depth))
			vector.DrawFilledRect(screen, float32(sx)-size/2, float32(sy)-size/2, size, size, clr, false)
		}
	}

	notes := g.field.Notes()
	for id := 0; id < notes.Len(); id++ {
		n, _ := notes.Note(id)
		at, _ := notes.WorldPosition(id)
		sx, sy, _, ok := v.Project(at, w, h)
		if !ok {
			continue
		}
		label := n.Text
		if n.State == tinsel.NoteFocused {
			label = "> " + label + "_"
		}
		ebitenutil.DebugPrintAt(screen, label, int(sx), int(sy))
	}

	ebitenutil.DebugPrint(screen, fmt.Sprintf("TPS %.0f  chaos %.2f  mode %s  spin %.2f",
		ebiten.ActualTPS(), g.field.Chaos(), g.field.Mode(), g.field.RotationRate()))
	g.shots.flush(screen)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.width, g.height = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}

func main() {
	var (
		configPath = flag.String("config", "", "path to tinsel.yaml (default: built-in constants)")
		listen     = flag.String("listen", "", "pose ingest address, e.g. :8765 (empty to disable)")
		record     = flag.String("record", "", "record ingested poses to this .jsonl.zst file")
		replay     = flag.String("replay", "", "replay poses from a .jsonl.zst recording")
		speed      = flag.Float64("speed", 1, "replay speed")
		loop       = flag.Bool("loop", false, "loop the replay")
		script     = flag.String("script", "", "JSON pose script to run")
		debug      = flag.Bool("debug", false, "log frame stats to stderr and panic on invariant violations")
		shotsDir   = flag.String("shots", "screenshots", "directory F12 screenshots are written to")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[tinsel] ", log.LstdFlags|log.Lmicroseconds)

	drv, err := driver.Start(context.Background(), driver.Options{
		ConfigPath:  *configPath,
		Listen:      *listen,
		RecordPath:  *record,
		ReplayPath:  *replay,
		ReplaySpeed: *speed,
		ReplayLoop:  *loop,
		ScriptPath:  *script,
		Debug:       *debug,
	}, logger)
	if err != nil {
		logger.Fatalf("start: %v", err)
	}
	defer drv.Close()

	g := &game{
		drv:     drv,
		field:   drv.Field,
		log:     logger,
		emulate: *listen == "" && *replay == "" && *script == "",
		width:   screenW,
		height:  screenH,
		shots:   &shooter{dir: *shotsDir, log: logger},
	}

	ebiten.SetWindowSize(screenW, screenH)
	ebiten.SetWindowTitle(windowTitle)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(g); err != nil {
		logger.Printf("run: %v", err)
	}
}
