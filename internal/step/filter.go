// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the output filters applied, in declaration order, to a
// command's raw output before its expectation is checked.
package step

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// FilterKind selects the transformation performed by a FilterType.
type FilterKind int

const (
	// FilterTrim strips leading and trailing whitespace.
	FilterTrim FilterKind = iota
	// FilterRegex keeps capture group Group of the first match of Pattern.
	FilterRegex
	// FilterLines keeps the first N lines, where N is parsed from Pattern.
	FilterLines
	// FilterLua replaces the output with the string returned by the Lua chunk in Pattern.
	FilterLua
)

var filterKindNames = map[string]FilterKind{
	"trim":  FilterTrim,
	"regex": FilterRegex,
	"lines": FilterLines,
	"lua":   FilterLua,
}

// ParseFilterKind maps a configuration keyword to its FilterKind.
func ParseFilterKind(s string) (FilterKind, error) {
	k, ok := filterKindNames[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown filter kind %q", s)
	}
	return k, nil
}

func (k FilterKind) String() string {
	for name, kind := range filterKindNames {
		if kind == k {
			return name
		}
	}
	return fmt.Sprintf("FilterKind(%d)", int(k))
}

// FilterType is a single output transformation.
type FilterType struct {
	Kind    FilterKind
	Pattern string
	Group   int
}

// Apply transforms output. Lua filters stop when ctx is done.
func (f FilterType) Apply(ctx context.Context, output string) (string, error) {
	switch f.Kind {
	case FilterTrim:
		return strings.TrimSpace(output), nil
	case FilterRegex:
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return "", fmt.Errorf("invalid filter pattern %q: %w", f.Pattern, err)
		}
		m := re.FindStringSubmatch(output)
		if m == nil {
			return "", fmt.Errorf("filter pattern %q did not match output", f.Pattern)
		}
		if f.Group < 0 || f.Group >= len(m) {
			return "", fmt.Errorf("filter pattern %q has no group %d", f.Pattern, f.Group)
		}
		return m[f.Group], nil
	case FilterLines:
		n, err := strconv.Atoi(f.Pattern)
		if err != nil || n < 0 {
			return "", fmt.Errorf("invalid line count %q", f.Pattern)
		}
		lines := strings.SplitAfter(output, "\n")
		if n < len(lines) {
			lines = lines[:n]
		}
		return strings.TrimSuffix(strings.Join(lines, ""), "\n"), nil
	case FilterLua:
		ret, err := runLua(ctx, f.Pattern, output)
		if err != nil {
			return "", err
		}
		if ret == lua.LNil {
			return "", fmt.Errorf("lua filter returned nothing")
		}
		return ret.String(), nil
	default:
		return "", fmt.Errorf("unknown filter kind %d", int(f.Kind))
	}
}

// ApplyFilters runs every filter in order, stopping at the first error.
func ApplyFilters(ctx context.Context, output string, filters []FilterType) (string, error) {
	var err error
	for i, f := range filters {
		output, err = f.Apply(ctx, output)
		if err != nil {
			return "", fmt.Errorf("filter %d (%s): %w", i, f.Kind, err)
		}
	}
	return output, nil
}
