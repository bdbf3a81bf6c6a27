package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter provides feedback while pipeline stages wait on the inference
// service. A total of -1 means the number of steps is unknown.
type Reporter interface {
	Start(total int, description string)
	Step(current int, message string)
	Finish()
}

// NewReporter returns a CIReporter if the CI environment variable is set, a
// TerminalReporter otherwise. Output goes to w.
func NewReporter(w io.Writer) Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{w: w}
	}
	return &TerminalReporter{w: w}
}

// TerminalReporter displays a bar, or a spinner when the total is unknown.
type TerminalReporter struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int, description string) {
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(r.w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetElapsedTime(true),
	}
	if total < 0 {
		opts = append(opts, progressbar.OptionSpinnerType(14))
	} else {
		opts = append(opts, progressbar.OptionShowCount())
	}
	r.bar = progressbar.NewOptions(total, opts...)
}

func (r *TerminalReporter) Step(current int, message string) {
	if r.bar == nil {
		return
	}
	r.bar.Describe(message)
	if current >= 0 {
		_ = r.bar.Set(current)
	} else {
		_ = r.bar.Add(1)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	w     io.Writer
	total int
}

func (r *CIReporter) Start(total int, description string) {
	r.total = total
	fmt.Fprintf(r.w, "%s\n", description)
}

func (r *CIReporter) Step(current int, message string) {
	if r.total < 0 {
		fmt.Fprintf(r.w, "  %s\n", message)
		return
	}
	fmt.Fprintf(r.w, "[%d/%d] %s\n", current, r.total, message)
}

func (r *CIReporter) Finish() {
	fmt.Fprintln(r.w, "done")
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Start(int, string) {}
func (Nop) Step(int, string)  {}
func (Nop) Finish()           {}
