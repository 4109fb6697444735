// Package selfcheck runs a fixed list of independent project checks and
// summarises them as a pass/fail count. Checks never terminate the process;
// the caller maps Summary.ExitCode to os.Exit.
package selfcheck

import (
	"fmt"
	"io"
)

// AssertionError is the failure reported by a check whose expectation did
// not hold.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string {
	return e.Msg
}

// Check is one named, independent check.
type Check struct {
	Name string
	Run  func() error
}

// Result is the outcome of one check.
type Result struct {
	Name    string
	Passed  bool
	Message string
}

// Summary aggregates the results of a run.
type Summary struct {
	Passed  int
	Failed  int
	Results []Result
}

// Total returns the number of checks run.
func (s Summary) Total() int {
	return s.Passed + s.Failed
}

// ExitCode returns 0 when every check passed and 1 otherwise.
func (s Summary) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}

// Run executes checks in order, printing progress and a summary to out.
// A failing or panicking check is counted and the run continues.
func Run(out io.Writer, checks ...Check) Summary {
	fmt.Fprintln(out, "Starting self-check...")
	fmt.Fprintln(out)

	var s Summary
	for _, c := range checks {
		fmt.Fprintf(out, "Testing %s...\n", c.Name)
		r := runOne(c)
		s.Results = append(s.Results, r)

		if r.Passed {
			s.Passed++
			fmt.Fprintf(out, "✓ %s checks passed\n", c.Name)
		} else {
			s.Failed++
			fmt.Fprintf(out, "✗ %s checks failed: %s\n", c.Name, r.Message)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Test Results:")
	fmt.Fprintf(out, "✓ Passed: %d\n", s.Passed)
	fmt.Fprintf(out, "✗ Failed: %d\n", s.Failed)
	fmt.Fprintf(out, "Total: %d\n", s.Total())
	fmt.Fprintln(out)
	if s.Failed > 0 {
		fmt.Fprintln(out, "Some checks failed. Exiting with code 1.")
	} else {
		fmt.Fprintln(out, "All checks passed! Exiting with code 0.")
	}

	return s
}

func runOne(c Check) (r Result) {
	r.Name = c.Name
	defer func() {
		if p := recover(); p != nil {
			r.Passed = false
			r.Message = fmt.Sprintf("panic: %v", p)
		}
	}()

	if c.Run == nil {
		r.Message = "check has no body"
		return r
	}
	if err := c.Run(); err != nil {
		r.Message = err.Error()
		return r
	}
	r.Passed = true
	return r
}

// assertf returns an *AssertionError when ok is false.
func assertf(ok bool, format string, args ...any) error {
	if ok {
		return nil
	}
	return &AssertionError{Msg: fmt.Sprintf(format, args...)}
}
