/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package console is a line-oriented front end for a 2D viewer session. It
// replays pointer input, drives the measurement tools and exports the
// overlay, either interactively through readline or from a command script.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"rockviewer/internal/export"
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	applog "rockviewer/internal/log"
	"rockviewer/internal/measure"
	"rockviewer/internal/viewer2d"
)

// ErrQuit is returned by Exec for quit and exit.
var ErrQuit = errors.New("quit")

// Config holds console configuration.
type Config struct {
	Prompt      string
	HistoryFile string
}

// Console executes commands against one session.
type Console struct {
	mu   sync.Mutex
	sess *viewer2d.Session
	out  io.Writer
	log  *slog.Logger
	// OnResult, when set, also receives every completed measurement.
	OnResult func(measure.Result)
}

// New binds a console to sess. Completed measurements are printed to out.
func New(sess *viewer2d.Session, out io.Writer) *Console {
	c := &Console{sess: sess, out: out, log: applog.WithComponent("console")}
	prev := sess.OnResult
	sess.OnResult = func(r measure.Result) {
		if prev != nil {
			prev(r)
		}
		fmt.Fprintf(c.out, "%s: %s\n", r.Tool, r.Text)
		if c.OnResult != nil {
			c.OnResult(r)
		}
	}
	return c
}

// Run starts the interactive loop. It returns nil on quit or end of input.
func (c *Console) Run(ctx context.Context, cfg Config) error {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = "\033[32m" + c.sess.Sample.Code + ">\033[0m "
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     cfg.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    NewCompleter(),
		Stdout:          c.out,
	})
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(c.out, "Sample %s (%s). Type help for commands.\n", c.sess.Sample.Code, c.sess.Sample.Name)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := c.Exec(line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
}

// Script runs a JSON array of command lines, stopping at the first error.
// A quit command ends the script without error.
func (c *Console) Script(r io.Reader) error {
	var lines []string
	if err := json.NewDecoder(r).Decode(&lines); err != nil {
		return fmt.Errorf("invalid script: %w", err)
	}
	for i, line := range lines {
		if err := c.Exec(line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			return fmt.Errorf("line %d (%q): %w", i+1, line, err)
		}
	}
	return nil
}

// Exec runs one command line. Blank lines and # comments are ignored.
func (c *Console) Exec(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exec(line)
}

// Apply runs fn against the session between commands. Background reloads
// use it so the session is never touched concurrently.
func (c *Console) Apply(fn func(*viewer2d.Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.sess)
}

func (c *Console) exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	parts := strings.Fields(line)
	cmd, args := strings.ToLower(parts[0]), parts[1:]
	c.log.Debug("command", slog.String("cmd", cmd), slog.Int("args", len(args)))

	s := c.sess
	switch cmd {
	case "quit", "exit", "q":
		return ErrQuit
	case "help", "h", "?":
		c.printHelp()
	case "tool":
		if len(args) == 0 {
			fmt.Fprintf(c.out, "tool: %s\n", toolName(s.Tool()))
			return nil
		}
		name := args[0]
		if name == "none" || name == "off" {
			name = ""
		}
		t, err := viewer2d.ParseTool(name)
		if err != nil {
			return err
		}
		s.SetTool(t)
		fmt.Fprintf(c.out, "tool: %s\n", toolName(t))
	case "click", "down", "up", "move":
		p, err := point(args, 0)
		if err != nil {
			return err
		}
		s.Dispatch(input.Event{Kind: kinds[cmd], Client: p})
	case "drag":
		from, err := point(args, 0)
		if err != nil {
			return err
		}
		to, err := point(args, 2)
		if err != nil {
			return err
		}
		s.Dispatch(input.Event{Kind: input.Down, Client: from})
		s.Dispatch(input.Event{Kind: input.Move, Client: to})
		s.Dispatch(input.Event{Kind: input.Up, Client: to})
	case "wheel":
		v, err := floats(args, 1)
		if err != nil {
			return err
		}
		at := s.Element.Bounds().Center()
		if len(args) >= 3 {
			if at, err = point(args, 1); err != nil {
				return err
			}
		}
		s.Dispatch(input.Event{Kind: input.Wheel, Client: at, DeltaY: v[0]})
	case "zoom":
		v, err := floats(args, 1)
		if err != nil {
			return err
		}
		b := s.Element.Bounds()
		at := geom.P(b.W/2, b.H/2)
		if len(args) >= 3 {
			if at, err = point(args, 1); err != nil {
				return err
			}
		}
		s.View.ZoomAtViewport(v[0], at)
	case "pan":
		d, err := point(args, 0)
		if err != nil {
			return err
		}
		s.View.PanBy(d)
	case "reset":
		s.ResetView()
	case "back":
		if !s.View.Back() {
			fmt.Fprintln(c.out, "no earlier view")
		}
	case "forward":
		if !s.View.Forward() {
			fmt.Fprintln(c.out, "no later view")
		}
	case "resize":
		v, err := floats(args, 2)
		if err != nil {
			return err
		}
		b := s.Element.Bounds()
		s.Resize(geom.R(b.X, b.Y, v[0], v[1]))
	case "annotations":
		fmt.Fprintf(c.out, "annotations: %s\n", onOff(s.ToggleAnnotations()))
	case "loupe":
		fmt.Fprintf(c.out, "loupe: %s\n", onOff(s.ToggleMagnifier()))
	case "popups":
		c.printPopups()
	case "close":
		if len(args) == 0 {
			s.ClosePopups()
			return nil
		}
		p, err := point(args, 0)
		if err != nil {
			return err
		}
		if !s.ClosePopupAt(p.Sub(s.Element.Bounds().Min())) {
			fmt.Fprintf(c.out, "no popup at %g,%g\n", p.X, p.Y)
		}
	case "cancel":
		s.CancelTool()
		fmt.Fprintln(c.out, "tool: none")
	case "results":
		c.printResults()
	case "scale":
		fmt.Fprintf(c.out, "scale bar: %s\n", s.ScaleBar())
	case "state":
		t := s.View.State()
		fmt.Fprintf(c.out, "scale %.3f translate %.1f,%.1f tool %s\n", t.Scale, t.Translate.X, t.Translate.Y, toolName(s.Tool()))
	case "export":
		return c.export(args)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
	return nil
}

var kinds = map[string]input.Kind{
	"click": input.Click,
	"down":  input.Down,
	"up":    input.Up,
	"move":  input.Move,
}

// export writes the overlay as seen in the viewport; with --image the
// sample image is drawn underneath.
func (c *Console) export(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: export <file.svg|file.png|file.pdf> [--image]")
	}
	s := c.sess
	b := s.Element.Bounds()
	opt := export.Options{Size: geom.Size{W: b.W, H: b.H}, Title: s.Sample.Code}
	if len(args) > 1 && args[1] == "--image" {
		if s.Image == nil {
			return errors.New("no image loaded")
		}
		r := s.ImageRect()
		opt.Background = s.Image
		opt.ImageRect = geom.R(r.X-b.X, r.Y-b.Y, r.W, r.H)
	}
	if err := export.WriteFile(args[0], s.Snapshot(), opt); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "exported %s\n", args[0])
	return nil
}

func (c *Console) printResults() {
	res := c.sess.Results()
	if len(res) == 0 {
		fmt.Fprintln(c.out, "no measurements")
		return
	}
	for i, r := range res {
		fmt.Fprintf(c.out, "%d. %-8s %s\n", i+1, r.Tool, r.Text)
	}
}

func (c *Console) printPopups() {
	recs := c.sess.Annotations.Registry().Records()
	if len(recs) == 0 {
		fmt.Fprintln(c.out, "no open popups")
		return
	}
	for _, r := range recs {
		fmt.Fprintf(c.out, "%s %s %q\n", r.ID, r.Annotation.Type, r.Annotation.Content.Title)
	}
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `Commands:
  tool [none|distance|angle|area]   show or select the measurement tool
  cancel                            drop the active tool and its drawing
  click|down|up|move X Y            send a pointer event (client pixels)
  drag X1 Y1 X2 Y2                  press, move and release
  wheel DY [X Y]                    wheel event, at the viewport centre by default
  zoom DELTA [X Y]                  change the scale around a viewport point
  pan DX DY                         translate the image
  reset | back | forward            view history
  resize W H                        resize the viewport
  annotations | loupe               toggle annotations or the magnifier
  popups | close [X Y]              list popups, close all or the one at X Y
  results | scale | state           print measurements, scale bar, transform
  export FILE [--image]             write the overlay as SVG, PNG or PDF
  quit                              leave the console
`)
}

func toolName(t viewer2d.Tool) string {
	if t == viewer2d.ToolNone {
		return "none"
	}
	return string(t)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func floats(args []string, n int) ([]float64, error) {
	if len(args) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(args))
	}
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

func point(args []string, at int) (geom.Pt, error) {
	if len(args) < at+2 {
		return geom.Pt{}, errors.New("want X and Y")
	}
	v, err := floats(args[at:at+2], 2)
	if err != nil {
		return geom.Pt{}, err
	}
	return geom.P(v[0], v[1]), nil
}
