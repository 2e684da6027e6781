package main

import (
	"log"
	"os"

	"github.com/nightconcept/extmanifest/internal/cli/app"
)

func main() {
	if err := app.New("v0.1.0").Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
