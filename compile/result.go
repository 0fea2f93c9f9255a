package compile

import (
	"errors"
	"fmt"
	"time"

	"github.com/eak1mov/go-minimaps/wdt"
)

var (
	ErrLayoutUnavailable = errors.New("minimaps: layout unavailable")
	ErrMalformedLayout   = wdt.ErrMalformedLayout
	ErrNothingPlaced     = errors.New("minimaps: no tile could be placed")
	ErrWrite             = errors.New("minimaps: cannot write map image")
)

// Job is one map to compile.
type Job struct {
	MapID    uint32
	Name     string
	LayoutID uint32
}

func (j Job) String() string {
	return fmt.Sprintf("%d (%s)", j.MapID, j.Name)
}

// Status is the terminal outcome of a job.
type Status int

const (
	StatusDone Status = iota
	StatusSkippedExisting
	StatusSkippedNoLayout
	StatusSkippedNoTiles
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusSkippedExisting:
		return "skipped (exists)"
	case StatusSkippedNoLayout:
		return "skipped (no layout)"
	case StatusSkippedNoTiles:
		return "skipped (no tiles)"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Skipped reports whether s is one of the skip outcomes.
func (s Status) Skipped() bool {
	return s == StatusSkippedExisting || s == StatusSkippedNoLayout || s == StatusSkippedNoTiles
}

// Result describes how a job ended. Err is set only for StatusFailed.
type Result struct {
	Job     Job
	Status  Status
	Path    string
	Size    int64
	Placed  int
	Omitted int
	Scaled  int
	Err     error
	Elapsed time.Duration
}

// Summary counts results by outcome.
type Summary struct {
	Done    int
	Skipped int
	Failed  int
	Placed  int
	Omitted int
}

func Summarize(results []Result) Summary {
	s := Summary{}
	for _, r := range results {
		switch {
		case r.Status == StatusDone:
			s.Done++
		case r.Status.Skipped():
			s.Skipped++
		default:
			s.Failed++
		}
		s.Placed += r.Placed
		s.Omitted += r.Omitted
	}
	return s
}
