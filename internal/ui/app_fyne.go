//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"rockviewer/internal/annotation"
	"rockviewer/internal/catalog"
	"rockviewer/internal/config"
	"rockviewer/internal/crash"
	"rockviewer/internal/domain"
	"rockviewer/internal/export"
	"rockviewer/internal/geom"
	"rockviewer/internal/input"
	applog "rockviewer/internal/log"
	"rockviewer/internal/magnifier"
	"rockviewer/internal/measure"
	"rockviewer/internal/projection"
	"rockviewer/internal/version"
	"rockviewer/internal/viewer2d"
	"rockviewer/internal/viewer3d"
)

const (
	prefWidth      = "window.width"
	prefHeight     = "window.height"
	prefLastSample = "last.sample"
	frameInterval  = time.Second / 60
)

// Run starts the desktop viewer. sampleCode, when set, is opened right away;
// otherwise the last viewed sample is restored.
func Run(sampleCode string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	src, closeSrc, err := catalog.FromConfig(cfg.Catalog, token)
	if err != nil {
		return err
	}
	defer closeSrc()

	cs := &crash.Session{}
	defer crash.Recover(cs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	timeout := time.Duration(cfg.Catalog.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	fyneApp := app.NewWithID("rockviewer")
	w := fyneApp.NewWindow("Rock Viewer")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback(prefWidth, 1280)
	winH := prefs.IntWithFallback(prefHeight, 800)
	if winW < 800 {
		winW = 800
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	scaleLabel := widget.NewLabel("")
	meta := widget.NewRichTextFromMarkdown("")
	meta.Wrapping = fyne.TextWrapWord

	view2d := NewViewCanvas()
	view3d := NewViewCanvas()

	// Sessions are only touched on the fyne goroutine.
	var (
		s2      *viewer2d.Session
		s3      *viewer3d.Session
		show3D  bool
		watcher *annotation.Watcher
	)
	if fs, ok := catalog.Local(src); ok {
		if wt, err := annotation.NewWatcher(fs.AnnotationDir(), 0); err != nil {
			l.Warn("annotation watcher disabled", slog.Any("err", err))
		} else {
			watcher = wt
			wt.Start(ctx)
			defer wt.Close()
		}
	}

	refreshScale := func() {
		switch {
		case show3D && s3 != nil:
			scaleLabel.SetText(s3.ScaleLabel())
		case !show3D && s2 != nil:
			scaleLabel.SetText(s2.ScaleBar())
		default:
			scaleLabel.SetText("")
		}
	}
	showResult := func(r measure.Result) { status.SetText(fmt.Sprintf("%s : %s", r.Tool, r.Text)) }

	view2d.OnEvent = func(ev input.Event) {
		if s2 == nil {
			return
		}
		s2.Dispatch(ev)
		view2d.Refresh()
		refreshScale()
	}
	view3d.OnEvent = func(ev input.Event) {
		if s3 != nil {
			s3.Dispatch(ev)
		}
	}
	view2d.OnResize = func(r geom.Rect) {
		if s2 != nil {
			s2.Resize(r)
		}
	}
	view3d.OnResize = func(r geom.Rect) {
		if s3 != nil {
			s3.Resize(r)
		}
	}

	install := func(sample domain.Sample, a *viewer2d.Session, b *viewer3d.Session) {
		if s2 != nil {
			s2.Close()
		}
		if s3 != nil {
			s3.Close()
		}
		s2, s3 = a, b
		cs.Sample = sample.Code
		cs.Dump = func(dir string) (string, error) { return DumpSession(dir, a, b) }
		view2d.SetRenderer(nil)
		view3d.SetRenderer(nil)
		if a != nil {
			a.OnResult = showResult
			a.OnFrame = func(magnifier.Frame) { fyne.Do(view2d.Refresh) }
			view2d.SetRenderer(func() (*image.RGBA, error) { return Frame2D(a) })
		}
		if b != nil {
			b.OnResult = showResult
			view3d.SetRenderer(func() (*image.RGBA, error) { return Frame3D(b) })
		}
		if watcher != nil {
			err := watcher.Watch(sample.Code, annotation.Viewer2D, func(list []annotation.Annotation) {
				list3 := annotation.Load(ctx, src, sample.Code, annotation.Viewer3D)
				fyne.Do(func() {
					if s2 == a && a != nil {
						a.Render(list)
						view2d.Refresh()
					}
					if s3 == b && b != nil {
						b.RenderAnnotations(list3)
					}
				})
			})
			if err != nil {
				l.Warn("watch annotations failed", slog.String("sample", sample.Code), slog.Any("err", err))
			}
		}
		meta.ParseMarkdown(MetaMarkdown(sample))
		prefs.SetString(prefLastSample, sample.Code)
		w.SetTitle("Rock Viewer - " + sample.Label())
		refreshScale()
		view2d.Refresh()
		view3d.Refresh()
	}

	openSample := func(sample domain.Sample) {
		status.SetText("Loading " + sample.Label() + "...")
		o2 := viewer2d.OptionsFrom(cfg.Viewer)
		o2.Viewport = view2d.Viewport()
		o3 := viewer3d.OptionsFrom(cfg.Viewer)
		o3.Viewport = view3d.Viewport()
		go func() {
			lctx, lcancel := context.WithTimeout(ctx, timeout)
			defer lcancel()
			a, err2 := viewer2d.Open(lctx, src, sample, o2)
			b, err3 := viewer3d.Open(lctx, src, sample, o3)
			fyne.Do(func() {
				install(sample, a, b)
				switch {
				case err2 != nil && err3 != nil:
					status.SetText("Failed to open " + sample.Code)
					dialog.ShowError(errors.Join(err2, err3), w)
				case err2 != nil:
					status.SetText("No thin section: " + err2.Error())
				case err3 != nil:
					status.SetText("No 3D model: " + err3.Error())
				default:
					status.SetText("Opened " + sample.Label())
				}
			})
		}()
	}

	// Sample list grouped by origin (left).
	sidebar := widget.NewAccordion()
	loadList := func() {
		lctx, lcancel := context.WithTimeout(ctx, timeout)
		defer lcancel()
		list, err := src.List(lctx)
		if err != nil {
			l.Error("sample list failed", slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		sidebar.Items = nil
		for _, g := range domain.GroupByOrigin(list) {
			box := container.NewVBox()
			for _, s := range g.Samples {
				s := s
				box.Add(widget.NewButton(s.Label(), func() { openSample(s) }))
			}
			sidebar.Append(widget.NewAccordionItem(GroupTitle(g), box))
		}
		sidebar.Refresh()
		code := sampleCode
		if code == "" {
			code = prefs.StringWithFallback(prefLastSample, "")
		}
		if code != "" {
			if s, err := catalog.Find(list, code); err == nil {
				openSample(s)
			}
		}
		status.SetText(fmt.Sprintf("%d samples", len(list)))
	}

	capture := func(frame func() (*image.RGBA, error), name string) {
		img, err := frame()
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			defer uc.Close()
			if err := png.Encode(uc, img); err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText("Saved " + uc.URI().Path())
		}, w)
		save.SetFileName(name)
		save.Show()
	}

	// 2D controls.
	tool := func(t viewer2d.Tool) func() {
		return func() {
			if s2 == nil {
				return
			}
			if s2.Tool() == t {
				s2.SetTool(viewer2d.ToolNone)
			} else {
				s2.SetTool(t)
			}
			view2d.Refresh()
		}
	}
	with2D := func(fn func(*viewer2d.Session)) func() {
		return func() {
			if s2 != nil {
				fn(s2)
				view2d.Refresh()
				refreshScale()
			}
		}
	}
	bar2D := container.NewHBox(
		widget.NewButton("Distance", tool(viewer2d.ToolDistance)),
		widget.NewButton("Angle", tool(viewer2d.ToolAngle)),
		widget.NewButton("Surface", tool(viewer2d.ToolArea)),
		widget.NewButton("Annuler", with2D(func(s *viewer2d.Session) { s.CancelTool() })),
		widget.NewButton("Loupe", with2D(func(s *viewer2d.Session) { s.ToggleMagnifier() })),
		widget.NewButton("Annotations", with2D(func(s *viewer2d.Session) { s.ToggleAnnotations() })),
		widget.NewButton("Fermer popups", with2D(func(s *viewer2d.Session) { s.ClosePopups() })),
		widget.NewButton("<", with2D(func(s *viewer2d.Session) { s.View.Back() })),
		widget.NewButton(">", with2D(func(s *viewer2d.Session) { s.View.Forward() })),
		widget.NewButton("Reset", with2D(func(s *viewer2d.Session) { s.ResetView() })),
		widget.NewButton("Capture", func() {
			if s2 != nil {
				capture(func() (*image.RGBA, error) { return Frame2D(s2) }, export.ScreenshotName(time.Now()))
			}
		}),
	)

	// 3D controls.
	with3D := func(fn func(*viewer3d.Session)) func() {
		return func() {
			if s3 != nil {
				fn(s3)
			}
		}
	}
	setView := func(v string) func() {
		return with3D(func(s *viewer3d.Session) {
			if err := s.SetView(v); err != nil {
				dialog.ShowError(err, w)
			}
		})
	}
	bar3D := container.NewHBox(
		widget.NewButton("Distance", with3D(func(s *viewer3d.Session) { s.ToggleDistance() })),
		widget.NewButton("Surface", with3D(func(s *viewer3d.Session) { s.ToggleArea() })),
		widget.NewButton("Annotations", with3D(func(s *viewer3d.Session) { s.ToggleAnnotations() })),
		widget.NewButton("Axes", with3D(func(s *viewer3d.Session) { s.ToggleAxes() })),
		widget.NewButton("Rotation", with3D(func(s *viewer3d.Session) { s.ToggleAutoRotate() })),
		widget.NewButton("Dessus", setView(projection.ViewTop)),
		widget.NewButton("Face", setView(projection.ViewFront)),
		widget.NewButton("Côté", setView(projection.ViewSide)),
		widget.NewButton("+", with3D(func(s *viewer3d.Session) { s.ZoomIn() })),
		widget.NewButton("-", with3D(func(s *viewer3d.Session) { s.ZoomOut() })),
		widget.NewButton("Reset", with3D(func(s *viewer3d.Session) { s.ResetView() })),
		widget.NewButton("Capture", func() {
			if s3 != nil {
				capture(func() (*image.RGBA, error) { return Frame3D(s3) }, export.CaptureName(s3.Sample.Code))
			}
		}),
	)

	tab2D := container.NewTabItem("Lame mince", container.NewBorder(bar2D, nil, nil, nil, view2d))
	tab3D := container.NewTabItem("Modèle 3D", container.NewBorder(bar3D, nil, nil, nil, view3d))
	tabs := container.NewAppTabs(tab2D, tab3D)
	tabs.OnSelected = func(t *container.TabItem) {
		show3D = t == tab3D
		refreshScale()
	}

	// The 3D camera animates (damping, auto-rotate), so it is ticked at a
	// fixed rate while its tab is visible.
	go func() {
		tk := time.NewTicker(frameInterval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				fyne.Do(func() {
					if !show3D || s3 == nil {
						return
					}
					s3.Tick(frameInterval.Seconds())
					view3d.Refresh()
					refreshScale()
				})
			}
		}
	}()

	exportOverlay := func(ext string) func() {
		return func() {
			if s2 == nil {
				dialog.ShowInformation("Export", "No sample open.", w)
				return
			}
			b := s2.Element.Bounds()
			ds := s2.Snapshot()
			save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				if uc == nil {
					return
				}
				path := uc.URI().Path()
				_ = uc.Close()
				if err := export.WriteFile(path, ds, export.Options{Size: b.Size(), Title: s2.Sample.Code}); err != nil {
					dialog.ShowError(err, w)
					return
				}
				status.SetText("Exported " + path)
			}, w)
			save.SetFileName(s2.Sample.Code + "-overlay" + ext)
			save.Show()
		}
	}

	reloadItem := fyne.NewMenuItem("Reload samples", loadList)
	svgItem := fyne.NewMenuItem("Export overlay as SVG...", exportOverlay(".svg"))
	pdfItem := fyne.NewMenuItem("Export overlay as PDF...", exportOverlay(".pdf"))
	fileMenu := fyne.NewMenu("File", reloadItem, fyne.NewMenuItemSeparator(), svgItem, pdfItem)
	aboutItem := fyne.NewMenuItem("About", func() {
		dialog.ShowInformation("Rock Viewer", "Version "+version.String(), w)
	})
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, fyne.NewMenu("Help", aboutItem)))
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) {
		with2D(func(s *viewer2d.Session) { s.ResetView() })()
		with3D(func(s *viewer3d.Session) { s.ResetView() })()
	})

	split := container.NewHSplit(container.NewVScroll(sidebar), tabs)
	split.Offset = 0.2
	body := container.NewHSplit(split, container.NewVScroll(meta))
	body.Offset = 0.78
	w.SetContent(container.NewBorder(nil, container.NewHBox(status, widget.NewSeparator(), scaleLabel), nil, nil, body))

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt(prefWidth, int(sz.Width))
		prefs.SetInt(prefHeight, int(sz.Height))
		if s2 != nil {
			s2.Close()
		}
		if s3 != nil {
			s3.Close()
		}
		cancel()
	})

	loadList()
	w.ShowAndRun()
	return nil
}

// ViewCanvas displays frames rendered from a viewer session and forwards
// pointer input to it in widget-local coordinates.
type ViewCanvas struct {
	widget.BaseWidget

	// OnEvent receives every pointer event.
	OnEvent func(input.Event)
	// OnResize receives the new viewport after a layout change.
	OnResize func(geom.Rect)

	render  func() (*image.RGBA, error)
	img     *canvas.Image
	pressed bool
}

func NewViewCanvas() *ViewCanvas {
	v := &ViewCanvas{img: canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))}
	v.img.FillMode = canvas.ImageFillStretch
	v.img.ScaleMode = canvas.ImageScalePixels
	v.ExtendBaseWidget(v)
	return v
}

// SetRenderer sets the frame source; nil shows an empty view.
func (v *ViewCanvas) SetRenderer(fn func() (*image.RGBA, error)) { v.render = fn }

// Viewport is the widget's current rectangle in its own coordinates.
func (v *ViewCanvas) Viewport() geom.Rect {
	sz := v.Size()
	if sz.Width <= 0 || sz.Height <= 0 {
		return geom.R(0, 0, 800, 600)
	}
	return geom.R(0, 0, float64(sz.Width), float64(sz.Height))
}

func (v *ViewCanvas) Resize(size fyne.Size) {
	v.BaseWidget.Resize(size)
	if v.OnResize != nil && size.Width > 0 && size.Height > 0 {
		v.OnResize(geom.R(0, 0, float64(size.Width), float64(size.Height)))
	}
}

func (v *ViewCanvas) MinSize() fyne.Size { return fyne.NewSize(320, 240) }

// redraw renders a new frame into the image object. It reports whether the
// image changed.
func (v *ViewCanvas) redraw() bool {
	if v.render == nil {
		v.img.Image = image.NewRGBA(image.Rect(0, 0, 1, 1))
		return true
	}
	frame, err := v.render()
	if err != nil {
		applog.WithComponent("ui").Debug("frame skipped", slog.Any("err", err))
		return false
	}
	v.img.Image = frame
	return true
}

func (v *ViewCanvas) emit(kind input.Kind, pos fyne.Position, button int) {
	if v.OnEvent != nil {
		v.OnEvent(input.Event{Kind: kind, Client: geom.P(float64(pos.X), float64(pos.Y)), Button: button})
	}
}

func (v *ViewCanvas) Tapped(e *fyne.PointEvent) { v.emit(input.Click, e.Position, 0) }

func (v *ViewCanvas) MouseDown(e *desktop.MouseEvent) {
	v.pressed = true
	v.emit(input.Down, e.Position, int(e.Button))
}

func (v *ViewCanvas) MouseUp(e *desktop.MouseEvent) {
	v.pressed = false
	v.emit(input.Up, e.Position, int(e.Button))
}

func (v *ViewCanvas) MouseIn(e *desktop.MouseEvent) { v.emit(input.Move, e.Position, 0) }

func (v *ViewCanvas) MouseMoved(e *desktop.MouseEvent) { v.emit(input.Move, e.Position, 0) }

func (v *ViewCanvas) MouseOut() {
	if v.OnEvent != nil {
		v.OnEvent(input.Event{Kind: input.Leave})
	}
}

func (v *ViewCanvas) Dragged(e *fyne.DragEvent) { v.emit(input.Move, e.Position, 0) }

func (v *ViewCanvas) DragEnd() {}

// Scrolled maps fyne's upward-positive wheel delta onto the viewer's
// downward-positive one.
func (v *ViewCanvas) Scrolled(e *fyne.ScrollEvent) {
	if v.OnEvent != nil {
		v.OnEvent(input.Event{Kind: input.Wheel, Client: geom.P(float64(e.Position.X), float64(e.Position.Y)), DeltaY: -float64(e.Scrolled.DY)})
	}
}

func (v *ViewCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(backdrop)
	return &viewRenderer{v: v, bg: bg, objects: []fyne.CanvasObject{bg, v.img}}
}

type viewRenderer struct {
	v       *ViewCanvas
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *viewRenderer) Destroy()                     {}
func (r *viewRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *viewRenderer) MinSize() fyne.Size           { return r.v.MinSize() }

func (r *viewRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.v.img.Resize(size)
	r.v.img.Move(fyne.NewPos(0, 0))
}

func (r *viewRenderer) Refresh() {
	r.Layout(r.v.Size())
	if r.v.redraw() {
		canvas.Refresh(r.v.img)
	}
}
