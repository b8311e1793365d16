package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ofumi529/Little-Artists-Studio/application/studio"
	"github.com/ofumi529/Little-Artists-Studio/domain/canvas"
	"github.com/ofumi529/Little-Artists-Studio/pkg/utils"
)

// Script is a recorded drawing session.
//
//	width: 800
//	height: 600
//	ops:
//	  - op: stroke
//	    color: "#ff0000"
//	    size: 8
//	    points: [[10, 10], [120, 80]]
//	  - op: undo
type Script struct {
	Width  int  `yaml:"width"`
	Height int  `yaml:"height"`
	Ops    []Op `yaml:"ops"`
}

// Op is one user action. Tool, color and size apply before a stroke and
// stay selected for later strokes.
type Op struct {
	Op     string       `yaml:"op" validate:"required,oneof=stroke undo redo clear resize"`
	Tool   string       `yaml:"tool,omitempty" validate:"omitempty,oneof=pen eraser"`
	Color  string       `yaml:"color,omitempty" validate:"omitempty,hexcolor"`
	Size   float64      `yaml:"size,omitempty" validate:"omitempty,min=1,max=50"`
	Points [][2]float64 `yaml:"points,omitempty"`
	Width  int          `yaml:"width,omitempty" validate:"omitempty,min=1"`
	Height int          `yaml:"height,omitempty" validate:"omitempty,min=1"`
}

func loadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseScript(f)
}

func parseScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if s.Width == 0 {
		s.Width = canvas.DefaultWidth
	}
	if s.Height == 0 {
		s.Height = canvas.DefaultHeight
	}
	for i, op := range s.Ops {
		if err := utils.ValidateStruct(op); err != nil {
			return nil, fmt.Errorf("op %d: %w", i+1, err)
		}
	}
	return &s, nil
}

// replay runs every op through the session command handlers.
func replay(s *studio.Session, script *Script) (studio.State, error) {
	state := s.State()
	var err error
	for i, op := range script.Ops {
		switch op.Op {
		case "stroke":
			state, err = replayStroke(s, op)
		case "undo":
			state, err = s.Undo()
		case "redo":
			state, err = s.Redo()
		case "clear":
			state, err = s.Clear()
		case "resize":
			state, err = s.Resize(op.Width, op.Height)
		default:
			err = fmt.Errorf("unknown op %q", op.Op)
		}
		if err != nil {
			return state, fmt.Errorf("op %d (%s): %w", i+1, op.Op, err)
		}
	}
	return state, nil
}

func replayStroke(s *studio.Session, op Op) (studio.State, error) {
	if op.Tool != "" {
		if _, err := s.SelectTool(canvas.Tool(op.Tool)); err != nil {
			return s.State(), err
		}
	}
	if op.Color != "" {
		if _, err := s.SelectColor(op.Color); err != nil {
			return s.State(), err
		}
	}
	if op.Size > 0 {
		s.SetBrushSize(op.Size)
	}
	if len(op.Points) == 0 {
		return s.State(), fmt.Errorf("stroke has no points")
	}

	s.OnStrokeStart(op.Points[0][0], op.Points[0][1])
	for _, p := range op.Points[1:] {
		if _, err := s.OnStrokeMove(p[0], p[1]); err != nil {
			return s.State(), err
		}
	}
	return s.OnStrokeEnd()
}
