// Package workflow turns workflow files into the ordered step list consumed by
// the scheduler.
//
// Two formats are understood. HCL files (`.hcl`) declare one `step` block per
// step:
//
//	step "version" {
//	  run     = "go version"
//	  require = ["setup"]
//
//	  filter "regex" {
//	    pattern = "go(\\S+)"
//	    group   = 1
//	  }
//	  expect {
//	    kind  = "matches"
//	    value = "^1\\."
//	  }
//	  retry {
//	    attempts = 2
//	    delay    = "500ms"
//	  }
//	}
//
// Expressions are evaluated with an `env` object holding the process
// environment and a handful of string functions (upper, lower, trimspace,
// join, format).
//
// YAML files (`.yaml`, `.yml`) carry the same fields under a top-level
// `steps` sequence, with `name` and the filter `kind` as ordinary keys.
//
// A step's index is its position in the combined list: files are read in
// discovery order and steps in declaration order within a file.
package workflow
