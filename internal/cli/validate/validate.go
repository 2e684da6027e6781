package validate

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/nightconcept/extmanifest/internal/cli/target"
	"github.com/nightconcept/extmanifest/internal/core/source"
	"github.com/nightconcept/extmanifest/internal/core/store"
	"github.com/nightconcept/extmanifest/internal/logging"
)

// ValidateCmd checks a package's manifests against their schemas and exits
// non-zero when any problem is found.
var ValidateCmd = &cli.Command{
	Name:      "validate",
	Usage:     "Checks the manifests of an archive, directory or URL against their schemas",
	ArgsUsage: "<path | url | github:owner/repo/path@ref>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the findings as JSON",
		},
		&cli.StringSliceFlag{
			Name:    "manifest-glob",
			Aliases: []string{"g"},
			Usage:   "Glob locating top-level manifests in a directory (repeatable)",
		},
	},
	Action: validateAction,
}

func validateAction(c *cli.Context) error {
	input := c.Args().First()
	if input == "" {
		return cli.Exit("Error: a package archive, directory or URL is required.", 1)
	}
	log := logging.FromContext(c)

	loc, err := source.Resolve(input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	local, cleanup, err := target.Fetch(loc, log)
	defer cleanup()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	r, err := store.Open(local, c.StringSlice("manifest-glob"), store.Env{Log: log})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error opening %s: %v", input, err), 1)
	}
	defer func() { _ = r.Close() }()

	findings, err := store.ValidatePackage(r)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error validating %s: %v", input, err), 1)
	}

	out := c.App.Writer
	if c.Bool("json") {
		if findings == nil {
			findings = []store.Finding{}
		}
		data, err := json.MarshalIndent(findings, "", "  ")
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error encoding findings: %v", err), 1)
		}
		_, _ = fmt.Fprintln(out, string(data))
	} else if len(findings) == 0 {
		_, _ = fmt.Fprintf(out, "%s %s\n", color.GreenString("ok"), input)
	} else {
		docColor := color.New(color.FgYellow).SprintFunc()
		for _, f := range findings {
			_, _ = fmt.Fprintf(out, "%s %s\n", docColor(f.Document), f.Problem)
		}
	}

	if len(findings) > 0 {
		return cli.Exit(fmt.Sprintf("%d problem(s) found in %s.", len(findings), input), 1)
	}
	return nil
}
