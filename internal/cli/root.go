// Package cli implements the cloudywindow command tree.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudywindow/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	Config  string // config file; default under the user config dir
	Store   string // overrides the config's store path
	Journal string // overrides the config's journal path
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the cloudywindow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "cloudywindow",
		Short:         "cloudywindow - per-site CSS for a see-through browser window",
		Long:          "Manage per-site CSS override rules, pick elements to hide or make transparent, and browse with the rules applied.",
		Version:       ir.AppVersion,
		SilenceErrors: true, // main prints errors so each is reported once
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default: <user config dir>/cloudywindow/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "rule store file (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", "", "journal database (overrides config)")

	// Rules
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewMatchCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewCompactCommand(opts))

	// Picker
	cmd.AddCommand(NewZapCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewPickerScriptCommand(opts))
	cmd.AddCommand(NewSelectorCommand(opts))

	// Document
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewFormatCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	// Hosts
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewBrowseCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
