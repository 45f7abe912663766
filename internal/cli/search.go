package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/runnerr0/wereyouhere/internal/history"
	"github.com/runnerr0/wereyouhere/internal/search"
	"github.com/runnerr0/wereyouhere/internal/server"
)

// Execute implements the go-flags Commander interface for VisitsCommand.
func (c *VisitsCommand) Execute(args []string) error {
	return withApp(c.globals, func(app *App) error {
		return c.executeWithApp(context.Background(), app)
	})
}

// executeWithApp runs the exact-match query against a provided app (for testing).
func (c *VisitsCommand) executeWithApp(ctx context.Context, app *App) error {
	visits, err := app.Search.Visits(ctx, c.Args.URL)
	if err != nil {
		return fmt.Errorf("visits: %w", err)
	}
	return printVisits(c.globals, fmt.Sprintf("visiting %q", c.Args.URL), visits)
}

// Execute implements the go-flags Commander interface for SearchCommand.
func (c *SearchCommand) Execute(args []string) error {
	return withApp(c.globals, func(app *App) error {
		return c.executeWithApp(context.Background(), app)
	})
}

// executeWithApp runs the substring query against a provided app (for testing).
func (c *SearchCommand) executeWithApp(ctx context.Context, app *App) error {
	visits, err := app.Search.Search(ctx, c.Args.URL)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return printVisits(c.globals, fmt.Sprintf("matching %q", c.Args.URL), visits)
}

// Execute implements the go-flags Commander interface for AroundCommand.
func (c *AroundCommand) Execute(args []string) error {
	return withApp(c.globals, func(app *App) error {
		return c.executeWithApp(context.Background(), app, time.Now())
	})
}

// executeWithApp runs the time-window query against a provided app (for
// testing); now anchors --ago.
func (c *AroundCommand) executeWithApp(ctx context.Context, app *App, now time.Time) error {
	ts, err := c.timestamp(now)
	if err != nil {
		return err
	}
	visits, err := app.Search.SearchAround(ctx, ts)
	if err != nil {
		return fmt.Errorf("around: %w", err)
	}
	at := time.Unix(int64(ts), 0).Local().Format("2006-01-02 15:04")
	return printVisits(c.globals, "around "+at, visits)
}

// timestamp resolves --ago or the positional TIMESTAMP to epoch seconds.
func (c *AroundCommand) timestamp(now time.Time) (float64, error) {
	raw := strings.TrimSpace(c.Args.Timestamp)
	switch {
	case c.Ago != "" && raw != "":
		return 0, fmt.Errorf("%w: give either TIMESTAMP or --ago, not both", search.ErrBadInput)
	case c.Ago != "":
		d, err := parseDuration(c.Ago)
		if err != nil {
			return 0, fmt.Errorf("%w: --ago: %v", search.ErrBadInput, err)
		}
		return float64(now.Add(-d).Unix()), nil
	case raw == "":
		return 0, fmt.Errorf("%w: TIMESTAMP or --ago is required", search.ErrBadInput)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp %q is neither epoch seconds nor RFC 3339", search.ErrBadInput, raw)
	}
	return float64(t.Unix()), nil
}

type visitedJSON struct {
	URL     string `json:"url"`
	Visited bool   `json:"visited"`
}

// Execute implements the go-flags Commander interface for VisitedCommand.
func (c *VisitedCommand) Execute(args []string) error {
	return withApp(c.globals, func(app *App) error {
		return c.executeWithApp(context.Background(), app)
	})
}

// executeWithApp runs the bulk membership query against a provided app (for testing).
func (c *VisitedCommand) executeWithApp(ctx context.Context, app *App) error {
	results, err := app.Search.Visited(ctx, c.Args.URLs)
	if err != nil {
		return fmt.Errorf("visited: %w", err)
	}

	if c.globals != nil && c.globals.JSON {
		out := make([]visitedJSON, len(results))
		for i, ok := range results {
			out[i] = visitedJSON{URL: c.Args.URLs[i], Visited: ok}
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for i, ok := range results {
		mark := " "
		if ok {
			mark = "✓"
		}
		fmt.Printf("%s %s\n", mark, c.Args.URLs[i])
	}
	return nil
}

func withApp(globals *GlobalFlags, fn func(*App) error) error {
	app, err := loadApp(globals)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func printVisits(globals *GlobalFlags, what string, visits []history.Visit) error {
	if globals != nil && globals.JSON {
		out := make([]server.VisitJSON, len(visits))
		for i, v := range visits {
			out[i] = server.NewVisitJSON(v)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(visits) == 0 {
		fmt.Printf("No visits %s\n", what)
		return nil
	}
	fmt.Printf("Found %d %s %s\n\n", len(visits), pluralize(len(visits), "visit", "visits"), what)

	for i, v := range visits {
		fmt.Printf("%d. %s\n", i+1, v.OriginalURL)

		meta := v.DT.Format(server.DTLayout) + " · " + v.Source
		if v.Duration != nil {
			meta += " · " + (time.Duration(*v.Duration) * time.Second).String()
		}
		fmt.Printf("   %s\n", meta)

		if loc := strings.TrimSpace(v.Locator.Title + " " + v.Locator.Href); loc != "" {
			fmt.Printf("   %s\n", loc)
		}
		if v.Context != nil {
			fmt.Printf("   %s\n", *v.Context)
		}

		if i < len(visits)-1 {
			fmt.Println()
		}
	}
	return nil
}
