package main

import (
	"os"

	psychecmder "github.com/papercomputeco/psyche/cmd/psyche"
)

func main() {
	cmd := psychecmder.NewPsycheCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
