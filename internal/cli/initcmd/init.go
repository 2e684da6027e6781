// Package initcmd implements `extm init`, which writes an extm.toml options
// file from interactive answers.
package initcmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/nightconcept/extmanifest/internal/core/config"
	"github.com/nightconcept/extmanifest/internal/core/store"
)

// promptWithDefault asks for a value and returns defaultValue on empty input.
func promptWithDefault(out io.Writer, reader *bufio.Reader, promptText string, defaultValue string) (string, error) {
	if defaultValue != "" {
		_, _ = fmt.Fprintf(out, "%s (default: %s): ", promptText, defaultValue)
	} else {
		_, _ = fmt.Fprintf(out, "%s: ", promptText)
	}

	input, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", fmt.Errorf("failed to read input for '%s': %w", promptText, err)
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue, nil
	}
	return input, nil
}

func promptYesNo(out io.Writer, reader *bufio.Reader, promptText string, defaultValue bool) (bool, error) {
	def := "n"
	if defaultValue {
		def = "y"
	}
	answer, err := promptWithDefault(out, reader, promptText+" (y/n)", def)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected y or n for '%s', got %q", promptText, answer)
}

// optional returns nil for an empty answer.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetInitCommand returns the definition for the "init" command.
func GetInitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create an " + config.OptionsTomlName + " options file in the current directory",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Overwrite an existing " + config.OptionsTomlName,
			},
		},
		Action: initAction,
	}
}

func initAction(c *cli.Context) error {
	out := c.App.Writer
	if _, err := os.Stat(filepath.Join(".", config.OptionsTomlName)); err == nil && !c.Bool("force") {
		return cli.Exit(fmt.Sprintf("Error: %s already exists (use --force to overwrite).", config.OptionsTomlName), 1)
	}

	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	reader := bufio.NewReader(in)
	_, _ = fmt.Fprintln(out, "Creating "+config.OptionsTomlName+" (leave a value empty to keep the package's own).")

	var cfg config.EditConfig
	answers := []struct {
		prompt string
		dest   **string
	}{
		{"Publisher id", &cfg.Options.PublisherID},
		{"Extension id", &cfg.Options.ExtensionID},
		{"Extension version", &cfg.Options.ExtensionVersion},
		{"Extension name", &cfg.Options.ExtensionName},
	}
	for _, a := range answers {
		v, err := promptWithDefault(out, reader, a.prompt, "")
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		*a.dest = optional(v)
	}

	visibility, err := promptWithDefault(out, reader, "Visibility (public, private, public_preview, private_preview)", "")
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if visibility != "" {
		v, err := store.ParseVisibility(visibility)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
		}
		cfg.Options.ExtensionVisibility = &v
	}

	pricing, err := promptWithDefault(out, reader, "Pricing (free, paid, trial)", "")
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if pricing != "" {
		p, err := store.ParsePricing(pricing)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
		}
		cfg.Options.ExtensionPricing = &p
	}

	updateVersions, err := promptYesNo(out, reader, "Propagate the extension version to units?", false)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if updateVersions {
		cfg.Options.UpdateUnitsVersion = &updateVersions
		granularity, err := promptWithDefault(out, reader, "Unit version type (major, minor, patch)", string(store.GranularityMajor))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		g, err := store.ParseGranularity(granularity)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error: %v", err), 1)
		}
		cfg.Options.UpdateUnitsVersionType = &g
	}

	updateIDs, err := promptYesNo(out, reader, "Derive new unit ids?", false)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if updateIDs {
		cfg.Options.UpdateUnitsID = &updateIDs
	}

	syncBinaries, err := promptYesNo(out, reader, "Synchronize binary file entries?", false)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if syncBinaries {
		cfg.Options.SynchronizeBinaryFileEntries = &syncBinaries
	}

	glob, err := promptWithDefault(out, reader, "Manifest glob", store.DefaultManifestGlobs[0])
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	cfg.ManifestGlobs = []string{glob}

	output, err := promptWithDefault(out, reader, "Archive output path (optional)", "")
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	cfg.Output = output

	if err := WriteConfig(".", &cfg); err != nil {
		return cli.Exit(fmt.Sprintf("Error writing %s: %v", config.OptionsTomlName, err), 1)
	}
	_, _ = fmt.Fprintf(out, "\nWrote %s\n", config.OptionsTomlName)
	return nil
}

// WriteConfig validates cfg and writes it to extm.toml in dir.
func WriteConfig(dir string, cfg *config.EditConfig) error {
	if err := cfg.Options.Validate(); err != nil {
		return err
	}
	return config.WriteOptionsToml(dir, cfg)
}
