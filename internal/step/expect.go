// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the expectations a step's filtered output is checked
// against once its command has finished.
package step

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ErrExpectation is wrapped by every failed expectation check.
var ErrExpectation = errors.New("expectation not met")

// ExpectKind selects the comparison performed by an ExpectType.
type ExpectKind int

const (
	// ExpectAnything accepts any output. It is the zero value.
	ExpectAnything ExpectKind = iota
	// ExpectEquals requires the output to equal Value exactly.
	ExpectEquals
	// ExpectContains requires Value to appear in the output.
	ExpectContains
	// ExpectMatches requires the output to match the regular expression Value.
	ExpectMatches
	// ExpectLua runs Value as a Lua chunk with `output` bound; it must return true.
	ExpectLua
)

var expectKindNames = map[string]ExpectKind{
	"anything": ExpectAnything,
	"equals":   ExpectEquals,
	"contains": ExpectContains,
	"matches":  ExpectMatches,
	"lua":      ExpectLua,
}

// ParseExpectKind maps a configuration keyword to its ExpectKind.
func ParseExpectKind(s string) (ExpectKind, error) {
	k, ok := expectKindNames[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown expectation kind %q", s)
	}
	return k, nil
}

func (k ExpectKind) String() string {
	for name, kind := range expectKindNames {
		if kind == k {
			return name
		}
	}
	return fmt.Sprintf("ExpectKind(%d)", int(k))
}

// ExpectType describes what a step's output must look like to succeed.
type ExpectType struct {
	Kind  ExpectKind
	Value string
}

// Check returns nil if output satisfies the expectation.
func (e ExpectType) Check(ctx context.Context, output string) error {
	switch e.Kind {
	case ExpectAnything:
		return nil
	case ExpectEquals:
		if output != e.Value {
			return fmt.Errorf("%w: expected %q, got %q", ErrExpectation, e.Value, output)
		}
	case ExpectContains:
		if !strings.Contains(output, e.Value) {
			return fmt.Errorf("%w: %q does not contain %q", ErrExpectation, output, e.Value)
		}
	case ExpectMatches:
		re, err := regexp.Compile(e.Value)
		if err != nil {
			return fmt.Errorf("invalid expectation pattern %q: %w", e.Value, err)
		}
		if !re.MatchString(output) {
			return fmt.Errorf("%w: %q does not match %q", ErrExpectation, output, e.Value)
		}
	case ExpectLua:
		ret, err := runLua(ctx, e.Value, output)
		if err != nil {
			return err
		}
		if !lua.LVAsBool(ret) {
			return fmt.Errorf("%w: lua expectation returned %s", ErrExpectation, ret.String())
		}
	default:
		return fmt.Errorf("unknown expectation kind %d", int(e.Kind))
	}
	return nil
}
