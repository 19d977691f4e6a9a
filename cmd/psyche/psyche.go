// Package psychecmder
package psychecmder

import (
	"github.com/spf13/cobra"

	servecmder "github.com/papercomputeco/psyche/cmd/psyche/serve"
	versioncmder "github.com/papercomputeco/psyche/cmd/version"
)

const psycheLongDesc string = `Psyche is a consciousness memory pipeline.

Run services using:
  psyche serve         Run the API server and cascade workers`

const psycheShortDesc string = "Psyche - Consciousness Memory Pipeline"

func NewPsycheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "psyche",
		Short: psycheShortDesc,
		Long:  psycheLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
