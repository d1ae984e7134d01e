// Package cli implements the folio terminal client. Commands drive the
// same controllers as the HTTP server and print markdown.
package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/aristath/folio/internal/di"
)

// WireFunc builds the dependency container
type WireFunc func(ctx context.Context) (*di.Container, error)

// App holds what the commands share. The container is wired on first
// use so that help output never opens a database.
type App struct {
	wire  WireFunc
	out   io.Writer
	errw  io.Writer
	plain bool

	mu        sync.Mutex
	container *di.Container
}

// Option configures an App
type Option func(*App)

// WithPlainOutput prints raw markdown instead of rendering it
func WithPlainOutput() Option {
	return func(a *App) { a.plain = true }
}

// NewApp creates an App printing to out and reporting errors to errw
func NewApp(wire WireFunc, out, errw io.Writer, opts ...Option) *App {
	a := &App{wire: wire, out: out, errw: errw}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Container returns the wired container
func (a *App) Container(ctx context.Context) (*di.Container, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.container != nil {
		return a.container, nil
	}
	c, err := a.wire(ctx)
	if err != nil {
		return nil, err
	}
	a.container = c
	return c, nil
}

// Close releases the container, if one was wired
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.container != nil {
		a.container.Close()
		a.container = nil
	}
}

// Print renders markdown to the output
func (a *App) Print(md string) {
	if a.plain {
		fmt.Fprint(a.out, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Fprint(a.out, out)
			return
		}
	}
	fmt.Fprint(a.out, md)
}

// fail reports err and returns the failure status
func (a *App) fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(a.errw, format+"\n", args...)
	return subcommands.ExitFailure
}

// usage reports a usage error
func (a *App) usage(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(a.errw, format+"\n", args...)
	return subcommands.ExitUsageError
}

// Register adds every command to the commander
func Register(c *subcommands.Commander, app *App) {
	c.Register(&modelsCmd{app: app}, "optimization")
	c.Register(&optimizeCmd{app: app}, "optimization")

	c.Register(&portfoliosCmd{app: app}, "portfolios")
	c.Register(&showCmd{app: app}, "portfolios")
	c.Register(&rebalanceCmd{app: app}, "portfolios")
	c.Register(&remindCmd{app: app}, "portfolios")

	c.Register(&settingsCmd{app: app}, "account")
	c.Register(&historyCmd{app: app}, "account")
}
