package main

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// progressBar renders backfill progress to stderr. Adapted from the
// teacher's internal/log.ProgressIndicator, trimmed to the one style this
// binary actually drives (a bar with an item count, no spinner styles menu).
type progressBar struct {
	mu        sync.Mutex
	name      string
	total     int
	current   int
	startTime time.Time
	quiet     bool
}

func newProgressBar(name string, total int, quiet bool) *progressBar {
	return &progressBar{name: name, total: total, startTime: time.Now(), quiet: quiet}
}

func (p *progressBar) update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = current
	if p.quiet {
		return
	}
	p.print()
}

func (p *progressBar) print() {
	var out strings.Builder
	out.WriteString("\r\033[K")
	out.WriteString(p.name)
	if p.total > 0 {
		barWidth := 20
		filled := int(float64(barWidth) * float64(p.current) / float64(p.total))
		out.WriteString(" [")
		for i := 0; i < barWidth; i++ {
			if i < filled {
				out.WriteString("█")
			} else {
				out.WriteString("░")
			}
		}
		out.WriteString(fmt.Sprintf("] %d/%d", p.current, p.total))
	} else {
		out.WriteString(fmt.Sprintf(" (%d)", p.current))
	}
	fmt.Fprint(stderrWriter, out.String())
}

func (p *progressBar) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return
	}
	duration := time.Since(p.startTime).Round(time.Millisecond)
	fmt.Fprintf(stderrWriter, "\r\033[K%s done (%d items, %v)\n", p.name, p.current, duration)
}

func (p *progressBar) fail(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return
	}
	fmt.Fprintf(stderrWriter, "\r\033[K%s failed: %s\n", p.name, reason)
}
