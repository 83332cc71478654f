package tinsel

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

var (
	// ErrInvalidPose is returned by PoseMailbox.Publish for samples carrying
	// NaN or infinite coordinates.
	ErrInvalidPose = errors.New("invalid pose sample")
	// ErrStreamClosed is returned when publishing to a closed mailbox.
	ErrStreamClosed = errors.New("pose stream closed")
)

// Hand labels one pose channel.
type Hand string

const (
	HandLeft  Hand = "left"
	HandRight Hand = "right"
)

// HandSample is one hand's state in a pose frame.
type HandSample struct {
	Position Vec3 `json:"position"`
	Pinching bool `json:"pinching"`
	// Curled marks a present hand whose index finger is folded toward the
	// wrist. A curled hand is neither open nor, on its own, pinching.
	Curled bool `json:"curled,omitempty"`
	// Wrist is the wrist in world units when the producer reports it.
	Wrist *Vec3 `json:"wrist,omitempty"`
}

// Open reports whether the hand is extended and not pinching.
func (s HandSample) Open() bool {
	return !s.Pinching && !s.Curled
}

// Steer returns the point rotation follows: the wrist when known,
// otherwise Position.
func (s HandSample) Steer() Vec3 {
	if s.Wrist != nil {
		return *s.Wrist
	}
	return s.Position
}

func (s *HandSample) finite() bool {
	return s.Position.IsFinite() && (s.Wrist == nil || s.Wrist.IsFinite())
}

// PoseFrame is one processed frame from the pose-estimation collaborator.
// A nil hand means that hand was not detected.
type PoseFrame struct {
	Seq   uint64      `json:"seq"`
	Left  *HandSample `json:"left,omitempty"`
	Right *HandSample `json:"right,omitempty"`
}

// Hand returns the sample for h and whether it is present.
func (f PoseFrame) Hand(h Hand) (HandSample, bool) {
	var s *HandSample
	switch h {
	case HandLeft:
		s = f.Left
	case HandRight:
		s = f.Right
	}
	if s == nil {
		return HandSample{}, false
	}
	return *s, true
}

// Validate reports ErrInvalidPose when any present hand has a non-finite
// position.
func (f PoseFrame) Validate() error {
	if f.Left != nil && !f.Left.finite() {
		return fmt.Errorf("%w: left hand at %v", ErrInvalidPose, f.Left.Position)
	}
	if f.Right != nil && !f.Right.finite() {
		return fmt.Errorf("%w: right hand at %v", ErrInvalidPose, f.Right.Position)
	}
	return nil
}

// PoseSample is what a PoseSource hands to the frame pass.
type PoseSample struct {
	Frame PoseFrame
	// Age is the time since the frame was published.
	Age time.Duration
}

// PoseSource is read once at the top of every frame. Latest must never
// block; ok is false when no frame is available.
type PoseSource interface {
	Latest() (sample PoseSample, ok bool)
}

type poseSlot struct {
	frame    PoseFrame
	received time.Time
}

// PoseMailbox is a latest-value PoseSource fed by an asynchronous producer.
// Publish may be called from any goroutine; Latest never blocks.
type PoseMailbox struct {
	slot     atomic.Pointer[poseSlot]
	closed   atomic.Bool
	rejected atomic.Uint64
	accepted atomic.Uint64

	now func() time.Time
}

// NewPoseMailbox returns an empty mailbox.
func NewPoseMailbox() *PoseMailbox {
	return &PoseMailbox{now: time.Now}
}

// Publish replaces the latest frame. Invalid frames are dropped, the
// previous frame is retained and ErrInvalidPose is returned.
func (m *PoseMailbox) Publish(f PoseFrame) error {
	if m.closed.Load() {
		return ErrStreamClosed
	}
	if err := f.Validate(); err != nil {
		m.rejected.Add(1)
		return err
	}
	m.slot.Store(&poseSlot{frame: f, received: m.now()})
	m.accepted.Add(1)
	return nil
}

// Latest returns the most recent frame and its age.
func (m *PoseMailbox) Latest() (PoseSample, bool) {
	if m.closed.Load() {
		return PoseSample{}, false
	}
	s := m.slot.Load()
	if s == nil {
		return PoseSample{}, false
	}
	return PoseSample{Frame: s.frame, Age: m.now().Sub(s.received)}, true
}

// Clear drops the latest frame so readers see an absent stream until the
// next Publish. Used when a producer disconnects.
func (m *PoseMailbox) Clear() {
	m.slot.Store(nil)
}

// Close permanently ends the stream. Readers see no frames afterwards.
func (m *PoseMailbox) Close() {
	m.closed.Store(true)
	m.slot.Store(nil)
}

// Closed reports whether Close was called.
func (m *PoseMailbox) Closed() bool {
	return m.closed.Load()
}

// Counts returns how many frames were accepted and rejected.
func (m *PoseMailbox) Counts() (accepted, rejected uint64) {
	return m.accepted.Load(), m.rejected.Load()
}

// --- Landmark helpers for pose producers ---

// Landmark is a normalized image-space hand landmark: X and Y in [0,1]
// from the top-left of the (unmirrored) camera frame, Z relative depth.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

const (
	// LandmarkSpanX and LandmarkSpanY map normalized landmark offsets from
	// the frame center to world units.
	LandmarkSpanX = 35.0
	LandmarkSpanY = 25.0
	// HandDepth is the world Z hands are placed on.
	HandDepth = 8.0
	// PinchDistance is the normalized thumb-to-index distance below which a
	// hand counts as pinching.
	PinchDistance = 0.08
	// ExtensionDistance is the normalized index-tip-to-wrist distance a
	// hand must exceed to count as extended.
	ExtensionDistance = 0.15
)

// landmarkToWorld maps a landmark onto the hand plane. The image is
// mirrored so moving the hand right moves the point right.
func landmarkToWorld(l Landmark) Vec3 {
	return Vec3{
		X: (0.5 - l.X) * LandmarkSpanX,
		Y: (0.5 - l.Y) * LandmarkSpanY,
		Z: HandDepth,
	}
}

// HandFromLandmarks builds a HandSample from the index fingertip and thumb
// tip landmarks. wrist is optional; when given, the sample carries it for
// rotation and marks the hand curled unless the index finger is extended.
func HandFromLandmarks(indexTip, thumbTip Landmark, wrist *Landmark) HandSample {
	s := HandSample{
		Position: landmarkToWorld(indexTip),
		Pinching: PinchFromLandmarks(thumbTip, indexTip),
	}
	if wrist != nil {
		w := landmarkToWorld(*wrist)
		s.Wrist = &w
		s.Curled = landmarkDist(indexTip, *wrist) <= ExtensionDistance
	}
	return s
}

func landmarkDist(a, b Landmark) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// PinchFromLandmarks reports whether the thumb and index fingertips are
// close enough to count as a pinch.
func PinchFromLandmarks(thumbTip, indexTip Landmark) bool {
	return landmarkDist(thumbTip, indexTip) < PinchDistance
}
