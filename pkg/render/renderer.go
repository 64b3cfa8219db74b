package render

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lyoneil/Botpress/pkg/domain"
	"github.com/lyoneil/Botpress/pkg/instruction"
)

// ErrUnknownContentType is returned for content types nobody registered.
var ErrUnknownContentType = errors.New("unknown content type")

// Builtin content types.
const (
	TypeText         = "builtin_text"
	TypeImage        = "builtin_image"
	TypeCard         = "builtin_card"
	TypeCarousel     = "builtin_carousel"
	TypeSingleChoice = "builtin_single-choice"
)

// Func renders one content type. Args are already template-rendered.
type Func func(args map[string]any, dest domain.Destination) ([]domain.RenderedElement, error)

// Renderer implements ports.ContentRenderer.
type Renderer struct {
	mu    sync.RWMutex
	types map[string]Func
}

// New creates a renderer with the builtin content types.
func New() *Renderer {
	r := &Renderer{types: make(map[string]Func)}
	r.Register(TypeText, renderText)
	r.Register(TypeImage, renderImage)
	r.Register(TypeCard, renderCard)
	r.Register(TypeCarousel, renderCarousel)
	r.Register(TypeSingleChoice, renderSingleChoice)
	return r
}

// Register adds or replaces a content type.
func (r *Renderer) Register(contentType string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[normalize(contentType)] = fn
}

// Types lists the registered content types, sorted.
func (r *Renderer) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// RenderElement implements ports.ContentRenderer. A leading '#' on the
// content type is ignored, so "#builtin_text" and "builtin_text" are the same.
func (r *Renderer) RenderElement(ctx context.Context, contentType string, args map[string]any, dest domain.Destination) ([]domain.RenderedElement, error) {
	name := normalize(contentType)
	r.mu.RLock()
	fn, ok := r.types[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContentType, contentType)
	}

	tpl, err := instruction.NewTemplate(args)
	if err != nil {
		return nil, err
	}
	rendered, _ := tpl.Render(args).(map[string]any)
	if rendered == nil {
		rendered = make(map[string]any)
	}

	elements, err := fn(rendered, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return elements, nil
}

// normalize strips the # and @ markers of content types written in flows.
func normalize(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if strings.HasPrefix(contentType, "#") || strings.HasPrefix(contentType, "@") {
		return contentType[1:]
	}
	return contentType
}

func str(args map[string]any, key string) string {
	if v, ok := args[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func renderText(args map[string]any, _ domain.Destination) ([]domain.RenderedElement, error) {
	text := str(args, "text")
	if text == "" {
		return nil, errors.New("missing text")
	}
	el := domain.RenderedElement{"type": "text", "text": text}
	if md, ok := args["markdown"].(bool); ok {
		el["markdown"] = md
	}
	return []domain.RenderedElement{el}, nil
}

func renderImage(args map[string]any, _ domain.Destination) ([]domain.RenderedElement, error) {
	image := str(args, "image")
	if image == "" {
		return nil, errors.New("missing image")
	}
	el := domain.RenderedElement{"type": "image", "image": image}
	if title := str(args, "title"); title != "" {
		el["title"] = title
	}
	return []domain.RenderedElement{el}, nil
}

func card(args map[string]any) (map[string]any, error) {
	title := str(args, "title")
	if title == "" {
		return nil, errors.New("card without title")
	}
	out := map[string]any{"title": title}
	for _, key := range []string{"subtitle", "image"} {
		if v := str(args, key); v != "" {
			out[key] = v
		}
	}
	if actions, ok := args["actions"].([]any); ok {
		out["actions"] = actions
	} else {
		out["actions"] = []any{}
	}
	return out, nil
}

func renderCard(args map[string]any, _ domain.Destination) ([]domain.RenderedElement, error) {
	c, err := card(args)
	if err != nil {
		return nil, err
	}
	c["type"] = "card"
	return []domain.RenderedElement{c}, nil
}

func renderCarousel(args map[string]any, _ domain.Destination) ([]domain.RenderedElement, error) {
	raw, _ := args["items"].([]any)
	if len(raw) == 0 {
		return nil, errors.New("carousel without items")
	}
	items := make([]any, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("carousel item %d is not an object", i)
		}
		c, err := card(m)
		if err != nil {
			return nil, fmt.Errorf("carousel item %d: %w", i, err)
		}
		items = append(items, c)
	}
	return []domain.RenderedElement{{"type": "carousel", "items": items}}, nil
}

func renderSingleChoice(args map[string]any, _ domain.Destination) ([]domain.RenderedElement, error) {
	raw, _ := args["choices"].([]any)
	if len(raw) == 0 {
		return nil, errors.New("single choice without choices")
	}
	choices := make([]any, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("choice %d is not an object", i)
		}
		title := str(m, "title")
		value := str(m, "value")
		if value == "" {
			value = title
		}
		choices = append(choices, map[string]any{"title": title, "value": value})
	}
	el := domain.RenderedElement{"type": "single-choice", "text": str(args, "text"), "choices": choices}
	if v, ok := args["disableFreeText"].(bool); ok {
		el["disableFreeText"] = v
	}
	return []domain.RenderedElement{el}, nil
}
