package edit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/nightconcept/extmanifest/internal/cli/target"
	"github.com/nightconcept/extmanifest/internal/core/config"
	"github.com/nightconcept/extmanifest/internal/core/source"
	"github.com/nightconcept/extmanifest/internal/core/store"
	"github.com/nightconcept/extmanifest/internal/logging"
)

// EditCmd applies identity, visibility, pricing and unit edits to an archive
// or a directory and commits them.
var EditCmd = &cli.Command{
	Name:      "edit",
	Usage:     "Edits the manifests of a package archive or directory",
	ArgsUsage: "<archive | directory | url>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Options file to apply (defaults to ./" + config.OptionsTomlName + " when present)",
		},
		&cli.StringFlag{Name: "publisher", Usage: "New publisher id"},
		&cli.StringFlag{Name: "extension-id", Usage: "New extension id"},
		&cli.StringFlag{Name: "version", Usage: "New extension version"},
		&cli.StringFlag{Name: "name", Usage: "New display name"},
		&cli.StringFlag{Name: "description", Usage: "New description"},
		&cli.StringFlag{Name: "visibility", Usage: "public, private, public_preview or private_preview"},
		&cli.StringFlag{Name: "pricing", Usage: "free, paid or trial"},
		&cli.BoolFlag{Name: "update-units-version", Usage: "Propagate the extension version to every unit"},
		&cli.StringFlag{Name: "units-version-type", Usage: "Which unit version parts follow the extension version: major, minor or patch"},
		&cli.BoolFlag{Name: "update-units-id", Usage: "Derive a deterministic id for every unit"},
		&cli.BoolFlag{Name: "sync-binaries", Usage: "Rebuild binary file entries from disk (directories only)"},
		&cli.StringSliceFlag{Name: "add-file", Usage: "Add or replace a file, as <package-path>=<local-file> (repeatable)"},
		&cli.StringSliceFlag{Name: "remove-file", Usage: "Remove a file by package path (repeatable)"},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Archive output path (defaults to rewriting the input)",
		},
		&cli.StringSliceFlag{
			Name:    "manifest-glob",
			Aliases: []string{"g"},
			Usage:   "Glob locating top-level manifests in a directory (repeatable)",
		},
		&cli.BoolFlag{Name: "dry-run", Usage: "Print the pending edits as JSON without writing anything"},
	},
	Action: editAction,
}

func editAction(c *cli.Context) error {
	input := c.Args().First()
	if input == "" {
		return cli.Exit("Error: a package archive or directory is required.", 1)
	}
	log := logging.FromContext(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error loading options: %v", err), 1)
	}

	flagOpts, err := optionsFromFlags(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	opts := cfg.Options.Merge(flagOpts)

	globs := c.StringSlice("manifest-glob")
	if len(globs) == 0 {
		globs = cfg.ManifestGlobs
	}

	loc, err := source.Resolve(input)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if loc.Remote() && c.String("out") == "" && cfg.Output == "" && !c.Bool("dry-run") {
		return cli.Exit("Error: editing a remote package requires --out.", 1)
	}
	local, cleanup, err := target.Fetch(loc, log)
	defer cleanup()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	r, err := store.Open(local, globs, store.Env{Log: log})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error opening %s: %v", input, err), 1)
	}
	defer func() { _ = r.Close() }()

	editor := store.NewEditor(r)
	if err := editor.ApplyOptions(opts); err != nil {
		return cli.Exit(fmt.Sprintf("Error applying options: %v", err), 1)
	}
	if err := applyFileFlags(c, editor); err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}

	edits := editor.Edits()
	if c.Bool("dry-run") {
		data, err := json.MarshalIndent(edits, "", "  ")
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error encoding edits: %v", err), 1)
		}
		_, _ = fmt.Fprintln(c.App.Writer, string(data))
		return nil
	}
	if edits.Empty() {
		_, _ = fmt.Fprintln(c.App.Writer, "Nothing to edit.")
		return nil
	}

	w, err := editor.ToWriter()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
	}
	if aw, ok := w.(*store.ArchiveWriter); ok {
		out := c.String("out")
		if out == "" {
			out = cfg.Output
		}
		if out == "" {
			out = local
		}
		aw.WithOutput(out)
	}

	res, err := w.Commit()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error committing edits to %s: %v", input, err), 1)
	}
	printResult(c, res, log)
	return nil
}

// loadConfig reads --config, or ./extm.toml when it exists. A missing
// default file yields an empty config.
func loadConfig(c *cli.Context) (*config.EditConfig, error) {
	if p := c.String("config"); p != "" {
		return config.LoadOptionsFile(p)
	}
	cfg, err := config.LoadOptionsToml(".")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &config.EditConfig{}, nil
		}
		return nil, err
	}
	return cfg, nil
}

// optionsFromFlags returns the options set explicitly on the command line.
func optionsFromFlags(c *cli.Context) (store.Options, error) {
	var o store.Options
	str := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}
	boolean := func(name string) *bool {
		if !c.IsSet(name) {
			return nil
		}
		v := c.Bool(name)
		return &v
	}

	o.PublisherID = str("publisher")
	o.ExtensionID = str("extension-id")
	o.ExtensionVersion = str("version")
	o.ExtensionName = str("name")
	o.ExtensionDescription = str("description")
	o.UpdateUnitsVersion = boolean("update-units-version")
	o.UpdateUnitsID = boolean("update-units-id")
	o.SynchronizeBinaryFileEntries = boolean("sync-binaries")

	if s := str("visibility"); s != nil {
		v, err := store.ParseVisibility(*s)
		if err != nil {
			return o, err
		}
		o.ExtensionVisibility = &v
	}
	if s := str("pricing"); s != nil {
		p, err := store.ParsePricing(*s)
		if err != nil {
			return o, err
		}
		o.ExtensionPricing = &p
	}
	if s := str("units-version-type"); s != nil {
		g, err := store.ParseGranularity(*s)
		if err != nil {
			return o, err
		}
		o.UpdateUnitsVersionType = &g
	}
	return o, nil
}

func applyFileFlags(c *cli.Context, editor *store.Editor) error {
	for _, arg := range c.StringSlice("add-file") {
		member, local, ok := strings.Cut(arg, "=")
		if !ok || member == "" || local == "" {
			return fmt.Errorf("invalid --add-file %q, expected <package-path>=<local-file>", arg)
		}
		data, err := os.ReadFile(local)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", local, err)
		}
		if err := editor.AddFile(member, data); err != nil {
			return err
		}
	}
	for _, member := range c.StringSlice("remove-file") {
		if err := editor.RemoveFile(member); err != nil {
			return err
		}
	}
	return nil
}

func printResult(c *cli.Context, res *store.Result, log logrus.FieldLogger) {
	out := c.App.Writer
	if res.OutputPath != "" {
		_, _ = fmt.Fprintf(out, "Wrote %s\n", res.OutputPath)
	}
	if res.Digest != "" {
		_, _ = fmt.Fprintf(out, "Digest: %s\n", res.Digest)
	}
	if res.OverridesPath != "" {
		_, _ = fmt.Fprintf(out, "Overrides: %s\n", res.OverridesPath)
	}
	for _, changed := range res.Changed {
		log.WithField("path", changed).Debug("Changed")
	}
	_, _ = fmt.Fprintf(out, "%d file(s) changed.\n", len(res.Changed))
}
