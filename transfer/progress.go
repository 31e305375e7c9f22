package transfer

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kfreezen/shellutil/expect"
)

// Update is one progress event parsed from rsync --progress output.
type Update struct {
	// Bytes transferred so far for the current file.
	Bytes int64
	// Percent complete for the current file.
	Percent int
	// Speed and Elapsed as rsync printed them, e.g. "1.25MB/s", "0:00:03".
	Speed   string
	Elapsed string

	// File transfer counters, multi-file runs only.
	Xfer       int
	ToCheck    int
	CheckTotal int

	// File is the path rsync just announced, file-name events only.
	File string

	// Summary fields, final event only.
	TotalSize int64
	Speedup   float64
	Done      bool
}

// ProgressFunc receives progress updates. A nil ProgressFunc discards them.
type ProgressFunc func(Update)

// Rsync --progress line grammar. These classify each output line into one of
// the sub-protocol states; the pattern-index contract of the expect engine is
// the whole state machine.
var (
	multiProgressLine  = expect.MustRegex(`\s+(\d+)\s*(\d+)%\s+([\d\.]+.B\/s)\s+([0-9:]+)\s\(xfer#(\d+),\sto-check\=(\d+)\/(\d+)\)`)
	fileNameLine       = expect.MustRegex(`([\w\/]+)\r`)
	summaryLine        = expect.MustRegex(`total size is (\d+)\s+speedup is ([\d\.]+)`)
	singleProgressLine = expect.MustRegex(`\s+(\d+)\s*(\d+)%\s+([\d\.]+.B\/s)\s+([0-9:]+)`)
)

// Reporter consumes rsync progress output from an interactive session and
// forwards parsed updates. It reads until the stream ends.
type Reporter struct {
	engine   *expect.Engine
	multiple bool
	report   ProgressFunc
}

// NewReporter wraps an engine running an rsync command. multiple selects the
// whole-tree grammar (with xfer counters) over the single-file one.
func NewReporter(engine *expect.Engine, multiple bool, report ProgressFunc) *Reporter {
	if report == nil {
		report = func(Update) {}
	}
	return &Reporter{engine: engine, multiple: multiple, report: report}
}

// Run consumes progress output until end of stream.
func (r *Reporter) Run() error {
	if r.multiple {
		return r.runMultiple()
	}
	return r.runSingle()
}

// Multi-file state indices into the pattern list below.
const (
	stateEOF = iota
	stateProgress
	stateFileName
	stateSummary
)

func (r *Reporter) runMultiple() error {
	patterns := []expect.Pattern{expect.EOF, multiProgressLine, fileNameLine, summaryLine}

	for {
		m, err := r.engine.ExpectMatch(patterns...)
		if err != nil {
			return fmt.Errorf("rsync progress: %w", err)
		}

		switch m.Index {
		case stateProgress:
			u := Update{
				Speed:   m.Groups[2],
				Elapsed: m.Groups[3],
			}
			u.Bytes, _ = strconv.ParseInt(m.Groups[0], 10, 64)
			u.Percent, _ = strconv.Atoi(m.Groups[1])
			u.Xfer, _ = strconv.Atoi(m.Groups[4])
			u.ToCheck, _ = strconv.Atoi(m.Groups[5])
			u.CheckTotal, _ = strconv.Atoi(m.Groups[6])
			r.report(u)
		case stateFileName:
			r.report(Update{File: m.Groups[0]})
		case stateSummary:
			u := Update{Done: true}
			u.TotalSize, _ = strconv.ParseInt(m.Groups[0], 10, 64)
			u.Speedup, _ = strconv.ParseFloat(m.Groups[1], 64)
			if u.Speedup > 1.0 {
				slog.Debug("rsync speedup", slog.Float64("factor", u.Speedup))
			}
			r.report(u)
		case stateEOF:
			return nil
		}
	}
}

func (r *Reporter) runSingle() error {
	patterns := []expect.Pattern{expect.EOF, singleProgressLine, summaryLine}

	for {
		m, err := r.engine.ExpectMatch(patterns...)
		if err != nil {
			return fmt.Errorf("rsync progress: %w", err)
		}

		switch m.Index {
		case 1:
			u := Update{Speed: m.Groups[2], Elapsed: m.Groups[3]}
			u.Bytes, _ = strconv.ParseInt(m.Groups[0], 10, 64)
			u.Percent, _ = strconv.Atoi(m.Groups[1])
			r.report(u)
		case 2:
			u := Update{Done: true}
			u.TotalSize, _ = strconv.ParseInt(m.Groups[0], 10, 64)
			u.Speedup, _ = strconv.ParseFloat(m.Groups[1], 64)
			r.report(u)
		case stateEOF:
			return nil
		}
	}
}
