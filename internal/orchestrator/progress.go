package orchestrator

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// ProgressReporter shows how far a run has got. It only advances on items
// that were finished or deliberately skipped.
type ProgressReporter interface {
	Start(message string, total, done int)
	Advance()
	Finish(interrupted bool)
}

type nopProgress struct{}

func (nopProgress) Start(string, int, int) {}
func (nopProgress) Advance()               {}
func (nopProgress) Finish(bool)            {}

// BarProgress renders a terminal progress bar.
type BarProgress struct {
	out     io.Writer
	writer  progress.Writer
	tracker *progress.Tracker
}

func NewBarProgress(out io.Writer) *BarProgress {
	return &BarProgress{out: out}
}

func (p *BarProgress) Start(message string, total, done int) {
	pw := progress.NewWriter()
	pw.SetOutputWriter(p.out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetMessageLength(40)
	pw.SetUpdateFrequency(500 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Speed = true

	p.tracker = &progress.Tracker{Message: message, Total: int64(total), Units: progress.UnitsDefault}
	p.tracker.SetValue(int64(done))
	pw.AppendTracker(p.tracker)
	p.writer = pw
	go pw.Render()
}

func (p *BarProgress) Advance() {
	if p.tracker != nil {
		p.tracker.Increment(1)
	}
}

func (p *BarProgress) Finish(interrupted bool) {
	if p.tracker == nil {
		return
	}
	if interrupted {
		p.tracker.MarkAsErrored()
	} else {
		p.tracker.MarkAsDone()
	}
	// one more frame for the final state
	time.Sleep(600 * time.Millisecond)
	p.writer.Stop()
	p.tracker = nil
}
