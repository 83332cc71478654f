// Package posestream carries hand-pose frames from an external pose
// estimator into a tinsel.PoseMailbox over WebSocket, and records and
// replays pose sessions as zstd-compressed JSONL.
package posestream

import (
	"encoding/json"
	"errors"

	"github.com/phanxgames/tinsel"
)

const ProtocolVersion = "1.0"

const (
	TypeHello     = "HELLO"
	TypeWelcome   = "WELCOME"
	TypePose      = "POSE"
	TypeLandmarks = "LANDMARKS"
)

// BaseMsg is decoded first to dispatch on Type.
type BaseMsg struct {
	Type string `json:"type"`
}

// HelloMsg opens a producer session.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Producer        string `json:"producer,omitempty"`
}

// WelcomeMsg acknowledges a HELLO.
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       uint64 `json:"session_id"`
	// StaleAfterMS tells the producer how old a frame may get before the
	// field treats the hand as absent.
	StaleAfterMS int64 `json:"stale_after_ms"`
}

// PoseMsg carries a processed pose frame.
type PoseMsg struct {
	Type string `json:"type"`
	tinsel.PoseFrame
}

// HandLandmarks are the two fingertip landmarks a producer may send instead
// of a processed hand.
type HandLandmarks struct {
	Index tinsel.Landmark  `json:"index"`
	Thumb tinsel.Landmark  `json:"thumb"`
	Wrist *tinsel.Landmark `json:"wrist,omitempty"`
}

// LandmarksMsg carries raw normalized landmarks for either hand.
type LandmarksMsg struct {
	Type  string         `json:"type"`
	Seq   uint64         `json:"seq"`
	Left  *HandLandmarks `json:"left,omitempty"`
	Right *HandLandmarks `json:"right,omitempty"`
}

// Frame converts the landmarks into a pose frame.
func (m LandmarksMsg) Frame() tinsel.PoseFrame {
	f := tinsel.PoseFrame{Seq: m.Seq}
	if m.Left != nil {
		h := tinsel.HandFromLandmarks(m.Left.Index, m.Left.Thumb, m.Left.Wrist)
		f.Left = &h
	}
	if m.Right != nil {
		h := tinsel.HandFromLandmarks(m.Right.Index, m.Right.Thumb, m.Right.Wrist)
		f.Right = &h
	}
	return f
}

var errUnknownType = errors.New("unknown message type")

// DecodeBase reads just the type field of msg.
func DecodeBase(msg []byte) (BaseMsg, error) {
	var b BaseMsg
	err := json.Unmarshal(msg, &b)
	return b, err
}
