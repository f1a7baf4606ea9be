package output

import (
	"fmt"
	"io"
)

// Level controls how much the CLI prints to stderr.
type Level int

const (
	Silent  Level = 0 // final result only
	Minimal Level = 1 // plus the summary block
	Normal  Level = 2 // plus per-iteration progress
	Debug   Level = 3 // plus prompts, streamed output and logs
)

// ParseLevel clamps n into the valid range.
func ParseLevel(n int) Level {
	switch {
	case n < int(Silent):
		return Silent
	case n > int(Debug):
		return Debug
	default:
		return Level(n)
	}
}

// Printer writes progress and diagnostics according to a verbosity level.
type Printer struct {
	w     io.Writer
	level Level
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer, level Level) *Printer {
	return &Printer{w: w, level: level}
}

// Level returns the configured level.
func (p *Printer) Level() Level { return p.level }

// Printf writes a line when the level is at least min.
func (p *Printer) Printf(min Level, format string, args ...any) {
	if p.level < min {
		return
	}
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Lines writes each line when the level is at least min.
func (p *Printer) Lines(min Level, lines []string) {
	if p.level < min {
		return
	}
	for _, l := range lines {
		fmt.Fprintln(p.w, l)
	}
}

// Prompt dumps the prompt being sent.
func (p *Printer) Prompt(prompt string) {
	p.Lines(Debug, []string{rule, "Prompt:", rule, prompt, rule})
}

// Chunk returns a streaming callback, or nil below debug level.
func (p *Printer) Chunk() func(string) {
	if p.level < Debug {
		return nil
	}
	return func(chunk string) {
		io.WriteString(p.w, chunk)
	}
}
