package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/runnerr0/wereyouhere/internal/server"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	app, err := loadApp(c.globals)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return c.executeWithApp(ctx, app)
}

// executeWithApp serves until ctx is cancelled (for testing). A missing
// store is fatal here rather than on the first request.
func (c *ServeCommand) executeWithApp(ctx context.Context, app *App) error {
	if err := app.Provider.Load(); err != nil {
		return fmt.Errorf("serve: %w (run `wereyouhere index` first)", err)
	}

	host := app.Config.Server.Host
	if c.Host != "" {
		host = c.Host
	}
	port := app.Config.Server.Port
	if c.Port != 0 {
		port = c.Port
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	app.Log.Info("serving visit store", "path", app.Provider.Path(), "addr", addr, "version", c.version)
	return server.New(app.Search, app.Log).Run(ctx, addr)
}
