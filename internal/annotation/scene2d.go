/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package annotation

import (
	"log/slog"

	"rockviewer/internal/geom"
	applog "rockviewer/internal/log"
	"rockviewer/internal/overlay"
	"rockviewer/internal/transform"
)

// PointRadius is half of the 10 px point marker.
const PointRadius = 5

// Scene2D draws the 2D annotations of one sample and opens their popups.
type Scene2D struct {
	layer   *overlay.Layer
	reg     *Registry[geom.Pt]
	byID    map[string]Annotation
	items   []overlay.Handle
	visible bool
	log     *slog.Logger

	// OnOpen, when set, runs after a popup is newly opened.
	OnOpen func(Annotation)
}

// NewScene2D creates an empty scene on layer.
func NewScene2D(layer *overlay.Layer, margin float64) *Scene2D {
	return &Scene2D{
		layer:   layer,
		reg:     NewRegistry[geom.Pt](layer, margin),
		byID:    make(map[string]Annotation),
		visible: true,
		log:     applog.WithComponent("annotation"),
	}
}

// Registry exposes the popup registry.
func (s *Scene2D) Registry() *Registry[geom.Pt] { return s.reg }

// Render replaces the scene with anns. Points become fixed-size markers,
// zones filled polygons; zones with fewer than three vertices are skipped.
// Annotations of the 3D viewer are ignored.
func (s *Scene2D) Render(anns []Annotation) (points, zones int) {
	s.Clear()
	for _, a := range anns {
		if a.Viewer != Viewer2D {
			continue
		}
		id := a.ID.String()
		var h overlay.Handle
		switch a.Type {
		case TypePoint:
			p, ok := a.Pos2D()
			if !ok {
				continue
			}
			h = s.layer.AddMarker(overlay.ImageSpace, p, PointRadius, overlay.PointStyle)
			h.SetClass("ts-anno-point")
			points++
		case TypeZone:
			poly := a.Polygon2D()
			if len(poly) < 3 {
				s.log.Debug("zone skipped", slog.String("id", id), slog.Int("points", len(poly)))
				continue
			}
			h = s.layer.AddPolygon(overlay.ImageSpace, poly, overlay.ZoneStyle)
			h.SetClass("ts-zone")
			zones++
		default:
			continue
		}
		h.SetKey(id)
		h.SetGroup(Group)
		s.items = append(s.items, h)
		s.byID[id] = a
	}
	return points, zones
}

// Clear removes every marker, zone and popup of the scene.
func (s *Scene2D) Clear() {
	s.reg.CloseAll()
	for _, h := range s.items {
		h.Remove()
	}
	s.items = nil
	s.byID = make(map[string]Annotation)
}

// HandleClick opens the popup of the annotation under the viewport point
// screen, if any. Points anchor at their position, zones at the mean of
// their vertices. It reports whether an annotation was hit; hidden
// annotations are never hit.
func (s *Scene2D) HandleClick(screen geom.Pt, t transform.Transform2D, container geom.Rect) bool {
	id, ok := s.layer.HitTest(screen, t)
	if !ok {
		return false
	}
	a, ok := s.byID[id]
	if !ok {
		return false
	}
	anchor, ok := a.Pos2D()
	if a.Type == TypeZone {
		anchor, ok = geom.Centroid(a.Polygon2D())
	}
	if !ok {
		return false
	}
	if _, opened := s.reg.Open(a, anchor); opened {
		s.log.Info("annotation opened", slog.String("id", id), slog.String("type", a.Type))
		if s.OnOpen != nil {
			s.OnOpen(a)
		}
	}
	s.Reposition(t, container)
	return true
}

// Reposition places every open popup at its projected anchor.
func (s *Scene2D) Reposition(t transform.Transform2D, container geom.Rect) {
	s.reg.RepositionAll(func(p geom.Pt) (geom.Pt, bool) { return transform.ToScreenSpace(p, t), true }, container)
}

// SetVisible shows or hides markers, zones and popups without closing them.
func (s *Scene2D) SetVisible(v bool) {
	s.visible = v
	s.layer.SetGroupHidden(Group, !v)
}

func (s *Scene2D) Visible() bool { return s.visible }

// Toggle flips visibility and returns the new state.
func (s *Scene2D) Toggle() bool {
	s.SetVisible(!s.visible)
	return s.visible
}

// Len returns the number of rendered annotations.
func (s *Scene2D) Len() int { return len(s.items) }
