// Package app assembles the extm command tree.
package app

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/nightconcept/extmanifest/internal/cli/edit"
	"github.com/nightconcept/extmanifest/internal/cli/initcmd"
	"github.com/nightconcept/extmanifest/internal/cli/self"
	"github.com/nightconcept/extmanifest/internal/cli/show"
	"github.com/nightconcept/extmanifest/internal/cli/validate"
	"github.com/nightconcept/extmanifest/internal/logging"
)

// New returns the extm application reporting version.
func New(version string) *cli.App {
	return &cli.App{
		Name:    "extm",
		Usage:   "Inspect and edit Azure DevOps extension packages",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Write logs as JSON",
			},
		},
		Before: func(c *cli.Context) error {
			errWriter := c.App.ErrWriter
			if errWriter == nil {
				errWriter = os.Stderr
			}
			logging.Attach(c.App, logging.New(errWriter, c.Bool("verbose"), c.Bool("log-json")))
			return nil
		},
		Action: func(c *cli.Context) error {
			_ = cli.ShowAppHelp(c)
			return nil
		},
		Commands: []*cli.Command{
			initcmd.GetInitCommand(),
			show.ShowCmd,
			edit.EditCmd,
			validate.ValidateCmd,
			self.NewSelfCommand(),
		},
	}
}
