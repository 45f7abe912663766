package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Index   *IndexCommand
	Serve   *ServeCommand
	Status  *StatusCommand
	Visits  *VisitsCommand
	Search  *SearchCommand
	Around  *AroundCommand
	Visited *VisitedCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "wereyouhere"
	parser.LongDescription = "Find when and in what context you visited a URL, from every history source you have."

	cmds := &commands{
		Index:   &IndexCommand{globals: &globals, version: version},
		Serve:   &ServeCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Visits:  &VisitsCommand{globals: &globals, version: version},
		Search:  &SearchCommand{globals: &globals, version: version},
		Around:  &AroundCommand{globals: &globals, version: version},
		Visited: &VisitedCommand{globals: &globals, version: version},
	}

	parser.AddCommand("index", "Rebuild the visit store", "Extract every configured history source, merge the visits and replace the visit store and urls.json.", cmds.Index)
	parser.AddCommand("serve", "Serve queries over HTTP", "Serve status, visits, search, search_around and visited over HTTP for the browser extension.", cmds.Serve)
	parser.AddCommand("status", "Show visit store status", "Show whether the visit store is available, where it is and how many visits it holds.", cmds.Status)
	parser.AddCommand("visits", "Show visits of a URL", "Show every visit whose normalised URL equals the normalised URL given.", cmds.Visits)
	parser.AddCommand("search", "Search visits by URL fragment", "Show every visit whose normalised URL contains the normalised URL given.", cmds.Search)
	parser.AddCommand("around", "Show visits around a moment", "Show every visit from 3 hours before to 5 minutes after a moment.", cmds.Around)
	parser.AddCommand("visited", "Check which URLs were visited", "Report, for each URL in order, whether it has been visited.", cmds.Visited)

	return parser, &globals, cmds
}

// Run is the main entry point for the wereyouhere CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("wereyouhere %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
