package expect

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Decoder feeds raw terminal bytes through an ANSI sequence parser and
// translates the recognized operations into Screen ops. The parsing itself is
// delegated to charmbracelet/x/ansi; this type only decides which operations
// matter for automation. Malformed sequences are absorbed by the parser
// rather than aborting the session.
type Decoder struct {
	parser *ansi.Parser
	screen *Screen
}

// NewDecoder returns a decoder writing into screen.
func NewDecoder(screen *Screen) *Decoder {
	d := &Decoder{screen: screen}

	p := ansi.NewParser()
	p.SetParamsSize(32)
	p.SetDataSize(4096)
	p.SetHandler(ansi.Handler{
		Print:     d.print,
		Execute:   d.execute,
		HandleCsi: d.csi,
		HandleOsc: d.osc,
	})
	d.parser = p

	return d
}

// Feed decodes a chunk of raw bytes. Partial escape sequences are carried in
// the parser state across calls, so chunk boundaries are arbitrary.
func (d *Decoder) Feed(data []byte) {
	for _, b := range data {
		d.parser.Advance(b)
	}
}

func (d *Decoder) print(r rune) {
	d.screen.Apply(Op{Kind: OpPrint, Text: string(r)})
}

// execute receives C0 control bytes. Only the four controls that matter for
// line splitting and transcripts are kept; BEL, SO/SI and friends are dropped.
func (d *Decoder) execute(b byte) {
	switch b {
	case '\r':
		d.screen.Apply(Op{Kind: OpCarriageReturn})
	case '\n':
		d.screen.Apply(Op{Kind: OpLineFeed})
	case '\b':
		d.screen.Apply(Op{Kind: OpBackspace})
	case '\t':
		d.screen.Apply(Op{Kind: OpTab})
	}
}

func (d *Decoder) csi(cmd ansi.Cmd, params ansi.Params) {
	switch cmd {
	case 'J': // erase in display
		mode := 0
		if len(params) > 0 {
			mode = params[0].Param(0)
		}
		d.screen.Apply(Op{Kind: OpEraseDisplay, Mode: mode})
	}
	// Cursor positioning, SGR, scroll regions: intentionally ignored.
}

func (d *Decoder) osc(cmd int, data []byte) {
	switch cmd {
	case 0, 2: // set icon name + title / set title
		s := string(data)
		if i := strings.IndexByte(s, ';'); i >= 0 {
			s = s[i+1:]
		}
		d.screen.Apply(Op{Kind: OpSetTitle, Text: s})
	}
}
