// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the Step structure, the unit of work scheduled by the
// engine, together with the Outcome recorded once the step has finished.
//
// The scheduler never looks inside a step's expectation, retry policy or
// filters. It copies them verbatim into the unit of work it submits to the
// worker pool, so any executor can give them meaning. The only field the
// scheduler interprets is Run, because a reference to another step must be
// resolved against the status table at dispatch time.
package step

import (
	"errors"
	"fmt"
	"time"
)

// ErrDependencyNotMet is the error recorded on a step that was never executed
// because one of its dependencies failed.
var ErrDependencyNotMet = errors.New("Dependency Not Met") //nolint:staticcheck

// Step is a named unit of work. Its identity during a run is its index in the
// slice handed to the scheduler; Name is only used for cross references.
type Step struct {
	Name    string
	Run     RunType
	Expect  ExpectType
	Retry   RetryPolicy
	Filters []FilterType

	// Require lists the names of steps that must complete successfully before
	// this one may start. It is consumed by the graph builder only.
	Require []string

	// Outcome is nil until the scheduler records the step's terminal result.
	Outcome *Outcome
}

// RunKind selects how a RunType's Value is interpreted.
type RunKind int

const (
	// RunShell executes Value verbatim through the shell.
	RunShell RunKind = iota
	// RunStep names another step whose recorded output becomes the command.
	RunStep
)

func (k RunKind) String() string {
	switch k {
	case RunShell:
		return "shell"
	case RunStep:
		return "step"
	default:
		return fmt.Sprintf("RunKind(%d)", int(k))
	}
}

// RunType is the action performed by a step.
type RunType struct {
	Kind  RunKind
	Value string
}

// Shell returns a RunType executing cmd verbatim.
func Shell(cmd string) RunType {
	return RunType{Kind: RunShell, Value: cmd}
}

// Ref returns a RunType that runs the output of the named step.
func Ref(name string) RunType {
	return RunType{Kind: RunStep, Value: name}
}

// Reference reports the referenced step name for RunStep actions.
func (r RunType) Reference() (string, bool) {
	if r.Kind != RunStep {
		return "", false
	}
	return r.Value, true
}

func (r RunType) String() string {
	return r.Kind.String() + ":" + r.Value
}

// Outcome is the terminal result of attempting a step.
type Outcome struct {
	Output   string
	Err      error
	Duration time.Duration
}

// Failed reports whether downstream steps must treat this outcome as unusable.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Skipped reports whether the step was never executed because a dependency
// failed.
func (o Outcome) Skipped() bool {
	return errors.Is(o.Err, ErrDependencyNotMet)
}

// DependencyNotMet returns the synthetic outcome assigned to a skipped step.
func DependencyNotMet() Outcome {
	return Outcome{Output: "", Err: ErrDependencyNotMet, Duration: 0}
}
