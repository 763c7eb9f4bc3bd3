package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Interval is the minimum time between two progress lines.
const Interval = 200 * time.Millisecond

// Writer counts bytes passing through it and periodically writes a progress
// line to out. The stream size is unknown, so only the running total is shown.
type Writer struct {
	out         io.Writer
	label       string
	written     int64
	started     time.Time
	mu          sync.Mutex
	lastPrinted time.Time
	now         func() time.Time
}

// NewWriter creates a progress Writer. A nil out disables output.
func NewWriter(out io.Writer, label string) *Writer {
	return &Writer{out: out, label: label, now: time.Now, started: time.Now()}
}

func (p *Writer) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written += int64(len(b))
	now := p.now()
	if now.Sub(p.lastPrinted) >= Interval {
		p.print(now)
		p.lastPrinted = now
	}
	return len(b), nil
}

// Written returns the byte count so far.
func (p *Writer) Written() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// Finish prints the final total and ends the progress line.
func (p *Writer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.out == nil {
		return
	}
	p.print(p.now())
	fmt.Fprint(p.out, "\n")
}

func (p *Writer) print(now time.Time) {
	if p.out == nil {
		return
	}
	elapsed := now.Sub(p.started)
	if secs := elapsed.Seconds(); secs >= 1 {
		rate := uint64(float64(p.written) / secs)
		fmt.Fprintf(p.out, "\r[%s] %s (%s/s)", p.label, humanize.Bytes(uint64(p.written)), humanize.Bytes(rate))
		return
	}
	fmt.Fprintf(p.out, "\r[%s] %s", p.label, humanize.Bytes(uint64(p.written)))
}
