package main

import (
	"log"
	"os"

	"github.com/nightconcept/extmanifest/internal/cli/app"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "v0.1.0"

func main() {
	if err := app.New(version).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
