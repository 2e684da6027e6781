package self

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/urfave/cli/v2"

	"github.com/nightconcept/extmanifest/internal/logging"
)

// DefaultRepository is where release binaries are published.
const DefaultRepository = "nightconcept/extmanifest"

// NewSelfCommand creates a new command for self-management.
func NewSelfCommand() *cli.Command {
	return &cli.Command{
		Name:  "self",
		Usage: "Manage the extm CLI application itself",
		Subcommands: []*cli.Command{
			{
				Name:  "update",
				Usage: "Update extm to the latest version",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Automatically confirm the update",
					},
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Check for available updates without installing",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Custom GitHub update source as 'owner/repo' (e.g., '" + DefaultRepository + "')",
					},
				},
				Action: updateAction,
			},
		},
	}
}

// parseCurrentVersion accepts vX.Y.Z or X.Y.Z.
func parseCurrentVersion(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(strings.TrimPrefix(v, "v"))
	if err != nil {
		return nil, fmt.Errorf("error parsing current version '%s': %w. Ensure version is like vX.Y.Z or X.Y.Z", v, err)
	}
	return parsed, nil
}

// repositorySlug validates the --source value, falling back to the default.
func repositorySlug(source string) (string, error) {
	if source == "" {
		return DefaultRepository, nil
	}
	parts := strings.Split(source, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("invalid --source format. Expected 'owner/repo', got: %s", source)
	}
	return source, nil
}

func updateAction(c *cli.Context) error {
	out := c.App.Writer
	log := logging.FromContext(c)
	currentVersionStr := c.App.Version

	currentSemVer, err := parseCurrentVersion(currentVersionStr)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	repoSlug, err := repositorySlug(c.String("source"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	log.WithField("version", currentSemVer.String()).WithField("source", repoSlug).Debug("Checking for latest version")

	ghSource, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error creating GitHub source: %v", err), 1)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{Source: ghSource})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to initialize updater: %v", err), 1)
	}

	latestRelease, found, err := updater.DetectLatest(c.Context, selfupdate.ParseSlug(repoSlug))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error detecting latest version: %v", err), 1)
	}
	if !found {
		_, _ = fmt.Fprintf(out, "Current version %s is already the latest.\n", currentVersionStr)
		return nil
	}
	log.WithField("latest", latestRelease.Version()).WithField("url", latestRelease.URL).Debug("Latest release detected")

	if !latestRelease.GreaterThan(currentSemVer.String()) {
		_, _ = fmt.Fprintf(out, "Current version %s is already the latest or newer.\n", currentVersionStr)
		return nil
	}

	_, _ = fmt.Fprintf(out, "New version available: %s (current: %s)\n", latestRelease.Version(), currentVersionStr)
	if c.Bool("check") {
		return nil
	}

	if !c.Bool("yes") {
		_, _ = fmt.Fprint(out, "Do you want to update? (y/N): ")
		in := c.App.Reader
		if in == nil {
			in = os.Stdin
		}
		input, _ := bufio.NewReader(in).ReadString('\n')
		if strings.TrimSpace(strings.ToLower(input)) != "y" {
			_, _ = fmt.Fprintln(out, "Update cancelled.")
			return nil
		}
	}

	_, _ = fmt.Fprintf(out, "Updating to %s...\n", latestRelease.Version())
	execPath, err := os.Executable()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Could not get executable path: %v", err), 1)
	}
	if err := updater.UpdateTo(c.Context, latestRelease, execPath); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to update: %v", err), 1)
	}

	_, _ = fmt.Fprintf(out, "Successfully updated to version %s.\n", latestRelease.Version())
	return nil
}
