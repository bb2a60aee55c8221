// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package render

import (
	"errors"
	"fmt"
	"sort"
)

// DefaultKey names the template used when a family has no entry of its own.
const DefaultKey = "default"

// ErrNoDefault is returned by CompileSet when the sources lack DefaultKey.
var ErrNoDefault = errors.New("template set has no default entry")

// Source is the uncompiled title/text pair for one template key.
type Source struct {
	Title string
	Text  string
}

// Pair is a compiled title/text pair.
type Pair struct {
	Title *Template
	Text  *Template
}

// Set maps template keys (playback, library, login, mark, default) to
// compiled pairs.
type Set struct {
	pairs map[string]Pair
}

// CompileSet compiles every entry, reporting all failures joined together.
func CompileSet(sources map[string]Source) (*Set, error) {
	if _, ok := sources[DefaultKey]; !ok {
		return nil, ErrNoDefault
	}

	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := &Set{pairs: make(map[string]Pair, len(sources))}
	var errs []error
	for _, key := range keys {
		src := sources[key]
		title, err := Compile(key+".title", src.Title)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		text, err := Compile(key+".text", src.Text)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set.pairs[key] = Pair{Title: title, Text: text}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("compile templates: %w", errors.Join(errs...))
	}
	return set, nil
}

// Lookup returns the pair for key, falling back to the default pair.
func (s *Set) Lookup(key string) Pair {
	if p, ok := s.pairs[key]; ok {
		return p
	}
	return s.pairs[DefaultKey]
}

// Render executes the title and text templates for key.
func (s *Set) Render(key string, vars map[string]any) (title, text string) {
	p := s.Lookup(key)
	return p.Title.Execute(vars), p.Text.Execute(vars)
}

// Keys lists the configured template keys in sorted order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, len(s.pairs))
	for k := range s.pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
