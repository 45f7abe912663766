package cli

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file (.yaml or .toml)" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// IndexCommand extracts every history source and rebuilds the visit store.
type IndexCommand struct {
	globals *GlobalFlags
	version string
}

// ServeCommand answers extension queries over HTTP.
type ServeCommand struct {
	Host string `long:"host" description:"Override listen host"`
	Port int    `long:"port" description:"Override listen port"`

	globals *GlobalFlags
	version string
}

// StatusCommand shows visit store availability and size.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// VisitsCommand lists visits whose normalised URL equals the given one.
type VisitsCommand struct {
	Args struct {
		URL string `positional-arg-name:"URL"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// SearchCommand lists visits whose normalised URL contains the given one.
type SearchCommand struct {
	Args struct {
		URL string `positional-arg-name:"URL"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}

// AroundCommand lists visits from 3h before to 5m after a moment.
type AroundCommand struct {
	Ago  string `long:"ago" description:"Use a moment this long ago instead of TIMESTAMP (e.g., 2h, 1d)"`
	Args struct {
		Timestamp string `positional-arg-name:"TIMESTAMP" description:"Epoch seconds or RFC 3339"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// VisitedCommand reports which of the given URLs have been visited.
type VisitedCommand struct {
	Args struct {
		URLs []string `positional-arg-name:"URL"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
}
