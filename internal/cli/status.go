package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version        string `json:"version"`
	Status         string `json:"status"`
	StorePath      string `json:"store_path"`
	StoreSizeBytes int64  `json:"store_size_bytes"`
	IndexedAt      string `json:"indexed_at,omitempty"`
	Visits         int64  `json:"visits"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	app, err := loadApp(c.globals)
	if err != nil {
		return err
	}
	defer app.Close()

	return c.executeWithApp(context.Background(), app)
}

// executeWithApp runs status against a provided app (for testing).
func (c *StatusCommand) executeWithApp(ctx context.Context, app *App) error {
	st, err := app.Search.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	var size int64
	var modTime time.Time
	if info, err := os.Stat(st.StorePath); err == nil {
		size = info.Size()
		modTime = info.ModTime()
	}

	if c.globals != nil && c.globals.JSON {
		out := statusJSON{
			Version:        c.version,
			Status:         st.Status,
			StorePath:      st.StorePath,
			StoreSizeBytes: size,
			Visits:         st.Visits,
		}
		if !modTime.IsZero() {
			out.IndexedAt = modTime.UTC().Format(time.RFC3339)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Println("wereyouhere Status")
	fmt.Println("==================")
	fmt.Printf("Version:       %s\n", c.version)
	fmt.Printf("Status:        %s\n", st.Status)
	fmt.Printf("Store:         %s (%s)\n", st.StorePath, formatBytes(size))
	fmt.Printf("Visits:        %s\n", formatNumber(st.Visits))
	if !modTime.IsZero() {
		fmt.Printf("Indexed:       %s ago\n", formatDurationHuman(time.Since(modTime)))
	}
	return nil
}
