// Package progressbar implements functionality of printing a progress
// bar to a terminal window
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressBar implements a concurrent progress bar. The bar is redrawn
// on its own goroutine, so Increment never blocks on output.
type ProgressBar struct {
	// width is the number of characters wide that the bar is drawn
	width int

	// maxProgress is the number of Increment calls needed to reach 100%
	maxProgress int

	mu              sync.Mutex
	currentProgress int
	start           time.Time

	out         io.Writer
	updateEvery time.Duration
	done        chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once
}

// New returns a new progress bar that is width characters wide,
// reaches 100% after max Increment calls, and redraws itself to out
// every updateEvery once displayed
func New(out io.Writer, width, max int, updateEvery time.Duration) *ProgressBar {
	if max < 1 {
		max = 1
	}
	return &ProgressBar{
		width:       width,
		maxProgress: max,
		out:         out,
		updateEvery: updateEvery,
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Increment increments the internal progress counter. Each time an
// iteration is performed, Increment should be called.
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentProgress < p.maxProgress {
		p.currentProgress++
	}
}

// Progress returns the number of Increment calls so far, capped at the
// maximum progress
func (p *ProgressBar) Progress() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentProgress
}

// Display starts redrawing the progress bar. It should only be called
// once.
func (p *ProgressBar) Display() {
	p.mu.Lock()
	p.start = time.Now()
	p.mu.Unlock()

	go func() {
		defer close(p.stopped)
		tick := time.NewTicker(p.updateEvery)
		defer tick.Stop()

		for {
			select {
			case <-tick.C:
				p.draw()
			case <-p.done:
				p.draw()
				fmt.Fprintln(p.out)
				return
			}
		}
	}()
}

// Close draws the bar a final time and stops redrawing. Close must
// only be called after Display, and further calls do nothing.
func (p *ProgressBar) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		<-p.stopped
	})
}

func (p *ProgressBar) draw() {
	p.mu.Lock()
	progress, elapsed := p.currentProgress, time.Since(p.start)
	p.mu.Unlock()

	fmt.Fprintf(p.out, "\r\033[K%v", render(p.width, progress, p.maxProgress,
		elapsed))
}

// render returns the text of a progress bar
func render(width, progress, max int, elapsed time.Duration) string {
	var bar strings.Builder
	filled := progress * width / max

	bar.WriteString("|")
	bar.WriteString(strings.Repeat("█", filled))
	bar.WriteString(strings.Repeat(" ", width-filled))
	fmt.Fprintf(&bar, "| [%.2f%% | elapsed: %v]",
		float64(progress)/float64(max)*100, elapsed.Truncate(time.Second))

	return bar.String()
}
