package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"smartassist/internal/config"
)

// StatusPrinter writes gateway status notifications to a terminal stream.
type StatusPrinter struct {
	w      io.Writer
	styles *Styles
	mu     sync.Mutex
}

// NewStatusPrinter creates a StatusPrinter writing to w.
func NewStatusPrinter(w io.Writer) *StatusPrinter {
	return &StatusPrinter{w: w, styles: DefaultStyles()}
}

func (p *StatusPrinter) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, s)
}

func (p *StatusPrinter) OnRetry(attempt, maxAttempts int, delay time.Duration, reason string) {
	p.println(p.styles.Warning.Render(fmt.Sprintf("%s retry %d/%d in %s",
		MessageIcons["warning"], attempt, maxAttempts, FormatDuration(delay))))
}

func (p *StatusPrinter) OnRateLimit(backend config.BackendID, waitTime time.Duration) {
	p.println(p.styles.Warning.Render(fmt.Sprintf("%s %s rate limited, available again in %s",
		MessageIcons["warning"], backend, FormatDuration(waitTime))))
}

func (p *StatusPrinter) OnFallback(from, to config.BackendID) {
	p.println(p.styles.Warning.Render(fmt.Sprintf("%s switched from %s to %s",
		MessageIcons["info"], from, to)))
}

// OnError prints errors the gateway recovered from. Other errors reach the
// caller, which reports them itself.
func (p *StatusPrinter) OnError(err error, recoverable bool) {
	if !recoverable {
		return
	}
	p.println(p.styles.Warning.Render(fmt.Sprintf("%s %v", MessageIcons["warning"], err)))
}
