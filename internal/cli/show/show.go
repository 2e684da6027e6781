package show

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

// report is the --json output.
type report struct {
	Source  string              `json:"source"`
	Kind    store.Kind          `json:"kind"`
	Package store.Summary       `json:"package"`
	Units   []store.UnitSummary `json:"units,omitempty"`
}

// ShowCmd prints the identity of a package and, optionally, its units.
var ShowCmd = &cli.Command{
	Name:      "show",
	Aliases:   []string{"info"},
	Usage:     "Displays the package summary of an archive, directory or URL.",
	ArgsUsage: "<path | url | github:owner/repo/path@ref>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "units",
			Aliases: []string{"u"},
			Usage:   "Also list the units the package contains",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the summary as JSON",
		},
		&cli.StringSliceFlag{
			Name:    "manifest-glob",
			Aliases: []string{"g"},
			Usage:   "Glob locating the top-level manifest in a directory (repeatable)",
		},
	},
	Action: showAction,
}

func showAction(c *cli.Context) error {
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

	summary, err := store.GetSummary(r)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error reading manifest of %s: %v", input, err), 1)
	}

	var units []store.UnitSummary
	if c.Bool("units") {
		units, err = store.GetUnitSummaries(r)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error reading units of %s: %v", input, err), 1)
		}
	}

	if c.Bool("json") {
		data, err := json.MarshalIndent(report{Source: loc.Canonical, Kind: r.Kind(), Package: summary, Units: units}, "", "  ")
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error encoding summary: %v", err), 1)
		}
		_, _ = fmt.Fprintln(c.App.Writer, string(data))
		return nil
	}

	printSummary(c, input, r.Kind(), summary, units)
	return nil
}

func printSummary(c *cli.Context, input string, kind store.Kind, summary store.Summary, units []store.UnitSummary) {
	out := c.App.Writer
	nameColor := color.New(color.FgMagenta, color.Bold, color.Underline).SprintFunc()
	versionColor := color.New(color.FgMagenta).SprintFunc()
	pathColor := color.New(color.FgHiBlack, color.Bold, color.Underline).SprintFunc()
	headerColor := color.New(color.FgCyan, color.Bold).SprintFunc()
	unitNameColor := color.New(color.FgWhite).SprintFunc()
	unitVersionColor := color.New(color.FgYellow).SprintFunc()
	unitPathColor := color.New(color.FgHiBlack).SprintFunc()

	_, _ = fmt.Fprintf(out, "%s@%s %s\n", nameColor(summary.Publisher+"."+summary.ID), versionColor(summary.Version), pathColor(input))
	_, _ = fmt.Fprintf(out, "name: %s\n", summary.Name)
	if summary.Description != "" {
		_, _ = fmt.Fprintf(out, "description: %s\n", summary.Description)
	}
	_, _ = fmt.Fprintf(out, "kind: %s\n", kind)

	if !c.Bool("units") {
		return
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, headerColor("units:"))
	if len(units) == 0 {
		_, _ = fmt.Fprintln(out, "No units found.")
		return
	}
	for _, u := range units {
		_, _ = fmt.Fprintf(out, "%s %s %s\n", unitNameColor(u.Name), unitVersionColor(u.Version), unitPathColor(u.LogicalPath))
	}
}
