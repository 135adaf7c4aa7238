// Package errchain renders an error and its wrapped causes as the
// depth-indexed list the yafpm CLIs print on failure.
package errchain

import (
	"errors"
	"fmt"
	"io"
)

// Print writes err and every error it wraps (via errors.Unwrap) to w, one
// per line, formatted as "%5d. %s" with a 1-indexed depth — matching the
// CLI error listing format.
func Print(w io.Writer, err error) {
	depth := 1
	for current := err; current != nil; depth++ {
		fmt.Fprintf(w, "%5d. %s\n", depth, current.Error())
		current = errors.Unwrap(current)
	}
}

// PrintTeardownFailure writes the secondary failure that occurred while
// trying to recover from a build error (e.g. a failed attempt to remove a
// corrupted output directory), prefixed with the explanatory line the CLI
// uses to distinguish it from the primary error chain.
func PrintTeardownFailure(w io.Writer, err error) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Furthermore, could not remove corrupted directory due to error:")
	Print(w, err)
}
