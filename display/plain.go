package display

import (
	"fmt"
	"io"

	"github.com/RyanBlaney/sonido-chords/chords"
	"github.com/RyanBlaney/sonido-chords/logging"
)

// PlainPrinter writes one line per chord change, for pipes and logs
type PlainPrinter struct {
	w       io.Writer
	all     bool
	printed bool
	last    string
	logger  logging.Logger
}

// NewPlainPrinter creates a printer; with all set every result is written
func NewPlainPrinter(w io.Writer, all bool) *PlainPrinter {
	return &PlainPrinter{
		w:   w,
		all: all,
		logger: logging.WithFields(logging.Fields{
			"component": "plain_printer",
		}),
	}
}

// Print writes r if its label differs from the last printed one
func (p *PlainPrinter) Print(r chords.Result) {
	if !p.all && p.printed && r.Label == p.last {
		return
	}
	p.printed = true
	p.last = r.Label

	if _, err := fmt.Fprintf(p.w, "[%6d] %s\n", r.Sequence, FormatResult(r)); err != nil {
		p.logger.Warn("Failed to write result", logging.Fields{"error": err.Error()})
	}
}
