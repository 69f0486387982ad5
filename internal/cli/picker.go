package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudywindow/internal/ir"
	"github.com/roach88/cloudywindow/internal/picker"
)

// ZapResult is the output of the zap command.
type ZapResult struct {
	Rule *ir.Rule `json:"rule" yaml:"rule"`
}

// ResetResult is the output of the reset command.
type ResetResult struct {
	Host    string   `json:"host" yaml:"host"`
	Removed []string `json:"removed" yaml:"removed"`
}

// SelectorResult is the output of the selector command.
type SelectorResult struct {
	Selector string         `json:"selector" yaml:"selector"`
	Hints    picker.HintSet `json:"hints" yaml:"hints"`
}

// ZapOptions holds flags for the zap command.
type ZapOptions struct {
	*RootOptions
	URL      string
	Selector string
	Action   string
}

// NewZapCommand creates the zap command.
func NewZapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ZapOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "zap",
		Short: "Commit a picker action without review",
		Long: `Add a rule exactly as the in-page picker's auto-zap would. The host comes
from --url. The page action ignores --selector and makes the common page
containers transparent.

Examples:
  cloudywindow zap --url https://www.youtube.com/ --selector '#masthead' --action hide
  cloudywindow zap --url https://example.com/ --action page`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runZap(e, opts, cmd))
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "page URL (required)")
	cmd.Flags().StringVar(&opts.Selector, "selector", "", "CSS selector of the element")
	cmd.Flags().StringVar(&opts.Action, "action", string(picker.ActionTransparent), "transparent|hide|dim|page")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func runZap(e *env, opts *ZapOptions, cmd *cobra.Command) error {
	msg, err := ir.MarshalCompact(map[string]any{
		"type": picker.EventAutoZap,
		"payload": map[string]string{
			"url":      opts.URL,
			"action":   opts.Action,
			"selector": opts.Selector,
		},
	})
	if err != nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to encode event", err)
	}
	ev, err := picker.Decode(msg)
	if err != nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid zap", err)
	}
	if ev.AutoZap.Host == "" {
		return e.formatter.Fail(ExitCommandError, ErrCodeInvalidArg, "cannot take a host from "+opts.URL, nil)
	}

	rule, ok := e.bridge.AutoZap(commandContext(cmd), ev.AutoZap)
	if !ok {
		_ = e.formatter.Error(ErrCodeGeneric, "nothing new to add for "+ev.AutoZap.Host, nil)
		return NewExitError(ExitFailure, "nothing new to add")
	}
	if e.formatter.Structured() {
		return e.formatter.Success(ZapResult{Rule: rule})
	}
	fmt.Fprintf(e.formatter.Writer, "Auto-added rule %s: %s\n", rule.ID, rule.CSS[0])
	return nil
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Remove the rule added by the last auto-zap",
		Long: `Remove the rule added by the most recent auto-zap, whether it came from
the picker or the zap command. Only one level is kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runUndo(e, cmd))
		},
	}
}

func runUndo(e *env, cmd *cobra.Command) error {
	id, ok := e.bridge.Undo(commandContext(cmd))
	if !ok {
		_ = e.formatter.Error(ErrCodeNotFound, "nothing to undo", nil)
		return NewExitError(ExitFailure, "nothing to undo")
	}
	if e.formatter.Structured() {
		return e.formatter.Success(map[string]string{"removed": id})
	}
	fmt.Fprintf(e.formatter.Writer, "Removed rule %s\n", id)
	return nil
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <host>",
		Short: "Remove every user rule for a host",
		Long: `Remove every rule whose host normalizes to <host>. Starter rules are
kept.

Example:
  cloudywindow reset www.youtube.com`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runReset(e, args[0], cmd))
		},
	}
}

func runReset(e *env, host string, cmd *cobra.Command) error {
	removed := e.bridge.Reset(commandContext(cmd), host)
	if removed == nil {
		removed = []string{}
	}
	if e.formatter.Structured() {
		return e.formatter.Success(ResetResult{Host: host, Removed: removed})
	}
	fmt.Fprintf(e.formatter.Writer, "Removed %d rule(s) for %s\n", len(removed), host)
	return nil
}

// NewPickerScriptCommand creates the picker-script command.
func NewPickerScriptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "picker-script",
		Short: "Print the in-page picker script",
		Long: `Print the picker script for injection into any web view. It reports
through window.` + picker.BindingName + `(json) and installs window.` + picker.ControllerName + `.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), picker.Script())
			return err
		},
	}
}

// NewSelectorCommand creates the selector command.
func NewSelectorCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "selector <html-file> <query>",
		Short: "Compute the picker's selector for an element in a saved page",
		Long: `Find the first element matching <query> in an HTML file and print the
selector the picker would derive for it, with its hints.

Example:
  cloudywindow selector page.html 'nav a.active'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelector(newFormatter(rootOpts, cmd), args[0], args[1])
		},
	}
}

func runSelector(f *OutputFormatter, path, query string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, "file not found: "+path, nil)
		}
		return f.Fail(ExitCommandError, ErrCodeReadFailed, "failed to open "+path, err)
	}
	defer file.Close()

	root, err := picker.ParseHTML(file)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeReadFailed, "failed to parse "+path, err)
	}
	sel, err := picker.SelectorFor(root, query)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeNotFound, "no element for "+query, err)
	}

	res := SelectorResult{Selector: sel, Hints: picker.Hints(sel)}
	if f.Structured() {
		return f.Success(res)
	}
	fmt.Fprintln(f.Writer, res.Selector)
	f.VerboseLog("transparent: %s", res.Hints.Transparent)
	f.VerboseLog("hide:        %s", res.Hints.Hide)
	f.VerboseLog("dim:         %s", res.Hints.Dim)
	return nil
}
