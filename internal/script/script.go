// Package script loads and runs typing scripts: YAML files describing a
// sequence of editor steps (open, create, type, save, close, exec, pause)
// that `kc run` plays against a server, for scripted demonstrations.
package script

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keycastsh/keycast/internal/protocol"
)

// Script is one parsed script file.
type Script struct {
	Name  string `yaml:"name,omitempty"`
	Steps []Step `yaml:"steps"`
}

// Step is one script entry. Exactly one action field (open, create, type,
// save, close, exec, pause) must be set; the remaining fields modify the
// type and exec actions. Close distinguishes "close this path" from "close
// the active document" (empty string).
type Step struct {
	Open   string  `yaml:"open,omitempty"`
	Create string  `yaml:"create,omitempty"`
	Type   *string `yaml:"type,omitempty"`
	Save   bool    `yaml:"save,omitempty"`
	Close  *string `yaml:"close,omitempty"`
	Exec   string  `yaml:"exec,omitempty"`
	Pause  string  `yaml:"pause,omitempty"`

	// create
	Content string `yaml:"content,omitempty"`

	// type
	Mode      string             `yaml:"mode,omitempty"`
	Speed     *float64           `yaml:"speed,omitempty"`
	Variation *float64           `yaml:"variation,omitempty"`
	Duration  *float64           `yaml:"duration,omitempty"`
	Quick     bool               `yaml:"quick,omitempty"`
	Position  *protocol.Position `yaml:"position,omitempty"`
	Selection *protocol.Range    `yaml:"selection,omitempty"`
	After     *protocol.Position `yaml:"after,omitempty"`

	// exec
	Args []any `yaml:"args,omitempty"`
}

type kind int

const (
	kindInvalid kind = iota
	kindOpen
	kindCreate
	kindType
	kindSave
	kindClose
	kindExec
	kindPause
)

func (k kind) String() string {
	switch k {
	case kindOpen:
		return "open"
	case kindCreate:
		return "create"
	case kindType:
		return "type"
	case kindSave:
		return "save"
	case kindClose:
		return "close"
	case kindExec:
		return "exec"
	case kindPause:
		return "pause"
	}
	return "invalid"
}

// kind classifies the step, failing when zero or several action fields are
// set.
func (s Step) kind() (kind, error) {
	var kinds []kind
	if s.Open != "" {
		kinds = append(kinds, kindOpen)
	}
	if s.Create != "" {
		kinds = append(kinds, kindCreate)
	}
	if s.Type != nil {
		kinds = append(kinds, kindType)
	}
	if s.Save {
		kinds = append(kinds, kindSave)
	}
	if s.Close != nil {
		kinds = append(kinds, kindClose)
	}
	if s.Exec != "" {
		kinds = append(kinds, kindExec)
	}
	if s.Pause != "" {
		kinds = append(kinds, kindPause)
	}

	switch len(kinds) {
	case 0:
		return kindInvalid, fmt.Errorf("no action: set one of open, create, type, save, close, exec or pause")
	case 1:
		return kinds[0], nil
	default:
		return kindInvalid, fmt.Errorf("ambiguous step: %v and %v both set", kinds[0], kinds[1])
	}
}

// pauseDuration parses the pause value ("500ms", "2s", ...).
func (s Step) pauseDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.Pause)
	if err != nil {
		return 0, fmt.Errorf("invalid pause %q: %w", s.Pause, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid pause %q: negative duration", s.Pause)
	}
	return d, nil
}

// typeParams assembles the wire parameters for a type step.
func (s Step) typeParams() protocol.TypeParams {
	return protocol.TypeParams{
		Text:      s.Type,
		Mode:      s.Mode,
		Speed:     s.Speed,
		Variation: s.Variation,
		Duration:  s.Duration,
		Quick:     s.Quick,
		Position:  s.Position,
		Selection: s.Selection,
		After:     s.After,
	}
}

// Parse decodes and validates a script. Every step must carry exactly one
// action, and pause durations must parse.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if len(s.Steps) == 0 {
		return nil, fmt.Errorf("script has no steps")
	}
	for i, step := range s.Steps {
		k, err := step.kind()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if k == kindPause {
			if _, err := step.pauseDuration(); err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
		}
	}
	return &s, nil
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
