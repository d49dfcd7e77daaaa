package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nerrad567/overlay-core/internal/director"
	"github.com/nerrad567/overlay-core/internal/progression"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

// Exit codes for runctl.
const (
	ExitSuccess      = 0 // Command succeeded
	ExitFailure      = 1 // Command ran but the timeline refused it
	ExitCommandError = 2 // Bad flags, config or database
)

// ExitError carries the exit code a failed command should end with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not
// an ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// printer writes command results as text or JSON.
type printer struct {
	format string
	w      io.Writer
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outcome prints the result of a timeline command.
func (p printer) outcome(o *director.Outcome) error {
	if p.format == "json" {
		return p.json(director.NewStatePayload(o))
	}

	t := o.Transition
	verb := string(t.Action)
	if !t.Changed {
		verb += " (no change)"
	}
	fmt.Fprintf(p.w, "%s %s: %s, %s\n", verb, t.Event.Name, describeCurrent(t), behind(t.Event.Shift))
	if t.Moved != nil {
		fmt.Fprintf(p.w, "  moved: #%d %s\n", t.Moved.Index, displayName(t.Moved))
	}
	if t.NextSlot != nil {
		fmt.Fprintf(p.w, "  next:  #%d %s\n", t.NextSlot.Index, displayName(t.NextSlot))
	}
	if r := o.Overlay; r != nil {
		fmt.Fprintf(p.w, "  overlay: %d/%d calls ok, %d skipped\n", r.Completed, r.Total, r.Skipped)
		for _, f := range r.Failures {
			fmt.Fprintf(p.w, "    failed %s %s: %s\n", f.Call, f.Target, f.Error)
		}
	}
	return nil
}

func describeCurrent(t *progression.Transition) string {
	if t.Current == nil {
		return "nothing is live"
	}
	return fmt.Sprintf("#%d %s is live", t.Current.Index, displayName(t.Current))
}

// behind describes a shift for a sentence: "12m behind" or "on time".
func behind(shift time.Duration) string {
	if late := timeline.FormatLateness(shift); late != "" {
		return late + " behind"
	}
	return "on time"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func displayName(run *timeline.Run) string {
	if run.Name == "" && run.IsIntermission {
		return "(intermission)"
	}
	return run.Name
}

func personNames(people []timeline.Person) string {
	sorted := append([]timeline.Person(nil), people...)
	timeline.SortPeople(sorted)
	names := make([]string, len(sorted))
	for i, p := range sorted {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}
