package telemetry

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/robinvdvleuten/ledgerreport/output"
)

// slowThreshold marks stages that are highlighted in reports.
const slowThreshold = 100 * time.Millisecond

// TimingCollector records timers as a tree.
type TimingCollector struct {
	mu     sync.Mutex
	roots  []*span
	styles *output.Styles
}

type span struct {
	name     string
	start    time.Time
	end      time.Time
	children []*span
}

func (s *span) duration() time.Duration {
	if s.end.IsZero() {
		return 0
	}
	return s.end.Sub(s.start)
}

// NewTimingCollector creates an empty collector.
func NewTimingCollector() *TimingCollector {
	return &TimingCollector{}
}

// WithStyles colours the report output.
func (c *TimingCollector) WithStyles(styles *output.Styles) *TimingCollector {
	c.styles = styles
	return c
}

// Start begins a top level timer.
func (c *TimingCollector) Start(name string) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &span{name: name, start: time.Now()}
	c.roots = append(c.roots, s)
	return &spanTimer{collector: c, span: s}
}

// Report writes the timing tree, one line per timer:
//
//	generate March 2024: 42ms
//	├─ report.load: 12ms
//	└─ report.render: 25ms
func (c *TimingCollector) Report(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, root := range c.roots {
		name := root.name
		if c.styles != nil {
			name = c.styles.Keyword(name)
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", name, formatDuration(root.duration()))

		for i, child := range root.children {
			c.writeSpan(w, child, "", i == len(root.children)-1)
		}
	}
}

func (c *TimingCollector) writeSpan(w io.Writer, s *span, prefix string, last bool) {
	branch, extension := "├─ ", "│  "
	if last {
		branch, extension = "└─ ", "   "
	}

	d := s.duration()
	timing := formatDuration(d)
	tree := prefix + branch
	if c.styles != nil {
		tree = c.styles.Dim(tree)
		timing = c.styles.Timing(timing, d >= slowThreshold)
	}
	_, _ = fmt.Fprintf(w, "%s%s: %s\n", tree, s.name, timing)

	for i, child := range s.children {
		c.writeSpan(w, child, prefix+extension, i == len(s.children)-1)
	}
}

type spanTimer struct {
	collector *TimingCollector
	span      *span
}

func (t *spanTimer) End() {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	if t.span.end.IsZero() {
		t.span.end = time.Now()
	}
}

func (t *spanTimer) Child(name string) Timer {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	s := &span{name: name, start: time.Now()}
	t.span.children = append(t.span.children, s)
	return &spanTimer{collector: t.collector, span: s}
}

// formatDuration shows milliseconds below one second, seconds above.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.2fs", float64(d)/float64(time.Second))
}
