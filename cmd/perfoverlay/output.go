package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mattn/go-isatty"

	"perfoverlay/internal/browser"
	"perfoverlay/internal/mangle"
	"perfoverlay/internal/overlay"
	"perfoverlay/internal/perfcheck"
)

// runResult is what `run` prints.
type runResult struct {
	Page      browser.Session   `json:"page"`
	Report    perfcheck.Report  `json:"report"`
	Attention *mangle.Attention `json:"attention,omitempty"`
	TracePath string            `json:"trace_path,omitempty"`
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeResult draws the panel for terminals and emits JSON otherwise.
func writeResult(w io.Writer, res runResult, tty bool, width int) error {
	if !tty {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	model := res.Report.Model
	if model.Details == nil && res.Report.Resources != nil {
		model.Details = res.Report.Resources
		model.State.Expanded = true
	}
	if _, err := fmt.Fprintln(w, overlay.RenderTerminal(model, width)); err != nil {
		return err
	}
	if a := res.Attention; a != nil {
		if len(a.NeedsAttention) > 0 {
			fmt.Fprintf(w, "needs attention: %s\n", strings.Join(a.NeedsAttention, ", "))
		}
		if len(a.HeavyInitiators) > 0 {
			fmt.Fprintf(w, "heavy initiators: %s\n", strings.Join(a.HeavyInitiators, ", "))
		}
	}
	if res.TracePath != "" {
		fmt.Fprintf(w, "trace: %s\n", res.TracePath)
	}
	return nil
}
