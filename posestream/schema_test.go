package posestream

import "testing"

func TestSchemas_Validate(t *testing.T) {
	s, err := CompileSchemas()
	if err != nil {
		t.Fatalf("CompileSchemas: %v", err)
	}

	tests := []struct {
		name string
		typ  string
		msg  string
		ok   bool
	}{
		{"hello", TypeHello, `{"type":"HELLO","protocol_version":"1.0","producer":"cam"}`, true},
		{"hello without version", TypeHello, `{"type":"HELLO"}`, false},
		{"empty pose", TypePose, `{"type":"POSE","seq":0}`, true},
		{"two hands", TypePose, `{"type":"POSE","seq":4,
			"left":{"position":{"x":1,"y":2,"z":8},"pinching":true},
			"right":{"position":{"x":-1,"y":0,"z":8}}}`, true},
		{"negative seq", TypePose, `{"type":"POSE","seq":-1}`, false},
		{"string coordinate", TypePose, `{"type":"POSE","seq":1,"left":{"position":{"x":"1","y":2,"z":8}}}`, false},
		{"missing z", TypePose, `{"type":"POSE","seq":1,"left":{"position":{"x":1,"y":2}}}`, false},
		{"landmarks", TypeLandmarks, `{"type":"LANDMARKS","seq":1,
			"left":{"index":{"x":0.4,"y":0.6},"thumb":{"x":0.41,"y":0.62,"z":-0.01}}}`, true},
		{"landmarks with wrist", TypeLandmarks, `{"type":"LANDMARKS","seq":2,
			"right":{"index":{"x":0.9,"y":0.4},"thumb":{"x":0.8,"y":0.5},"wrist":{"x":0.9,"y":0.8}}}`, true},
		{"wrist out of frame", TypeLandmarks, `{"type":"LANDMARKS","seq":2,
			"right":{"index":{"x":0.9,"y":0.4},"thumb":{"x":0.8,"y":0.5},"wrist":{"x":0.9,"y":-0.2}}}`, false},
		{"pose with wrist", TypePose, `{"type":"POSE","seq":5,
			"right":{"position":{"x":-1,"y":0,"z":8},"curled":true,"wrist":{"x":-1,"y":-3,"z":8}}}`, true},
		{"landmark out of frame", TypeLandmarks, `{"type":"LANDMARKS","seq":1,
			"left":{"index":{"x":1.4,"y":0.6},"thumb":{"x":0.4,"y":0.6}}}`, false},
		{"wrong type const", TypePose, `{"type":"HELLO","seq":1}`, false},
		{"not json", TypePose, `{"type":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.typ, []byte(tt.msg))
			if (err == nil) != tt.ok {
				t.Errorf("Validate = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestSchemas_UnknownType(t *testing.T) {
	s, err := CompileSchemas()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Validate("BYE", []byte(`{"type":"BYE"}`)); err == nil {
		t.Error("expected error for unknown type")
	}
}
