package callbacks

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/tsawler/go-trainer/runner"
)

// Progress renders a PyTorch-style progress line per loader pass, updated
// every Every batches. It reads the staged batch metrics, so register it
// after the metrics callback.
type Progress struct {
	runner.NopCallback

	// Every throttles rendering to one update per N batches. The first and
	// last batch of a pass always render.
	Every int

	out       io.Writer
	batch     int
	startTime time.Time
}

// NewProgress creates a progress callback writing to stdout.
func NewProgress(every int) *Progress {
	if every <= 0 {
		every = 1
	}
	return &Progress{Every: every, out: os.Stdout}
}

// SetOutput redirects the progress output, mainly for tests.
func (c *Progress) SetOutput(w io.Writer) {
	c.out = w
}

func (c *Progress) OnLoaderStart(s *runner.RunState) error {
	c.batch = 0
	c.startTime = time.Now()
	return nil
}

func (c *Progress) OnBatchEnd(s *runner.RunState) error {
	c.batch++

	if c.batch%c.Every != 0 && c.batch != 1 && c.batch != s.LoaderLen {
		return nil
	}

	c.render(s)
	return nil
}

func (c *Progress) OnLoaderEnd(s *runner.RunState) error {
	fmt.Fprintln(c.out)
	return nil
}

// render draws one progress line; the carriage return overwrites the
// previous one.
func (c *Progress) render(s *runner.RunState) {
	line := fmt.Sprintf("\r%s %d/%d [%s] batch %d/%d",
		s.Stage,
		s.Epoch+1,
		s.Config.NEpochs,
		s.LoaderName,
		c.batch,
		s.LoaderLen,
	)

	elapsed := time.Since(c.startTime)
	if rate := float64(c.batch) / elapsed.Seconds(); rate > 0 {
		line += fmt.Sprintf(" [%s, %.2fbatch/s]", formatDuration(elapsed), rate)
	}

	values := s.Metrics.BatchValues()
	names := make([]string, 0, len(values))
	for name := range values {
		if strings.HasPrefix(name, "_") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		line += fmt.Sprintf(" %s=%.4f", name, values[name])
	}

	fmt.Fprint(c.out, line)
}

// formatDuration formats duration as MM:SS
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
