package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cloudywindow/internal/editor"
	"github.com/roach88/cloudywindow/internal/ir"
)

// ImportResult is the structured output of the import command.
type ImportResult struct {
	Status  string `json:"status" yaml:"status"`
	Rules   int    `json:"rules" yaml:"rules"`
	Hash    string `json:"hash" yaml:"hash"`
	Changed bool   `json:"changed" yaml:"changed"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the rule document",
		Long: `Print the rule document exactly as the editor shows it. The output can
be edited and passed back to import.

Example:
  cloudywindow export > rules.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runExport(e))
		},
	}
}

func runExport(e *env) error {
	text := e.bridge.Read()
	if e.formatter.Structured() {
		hash, err := documentHash([]byte(text))
		if err != nil {
			return e.formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to hash rules", err)
		}
		return e.formatter.Success(map[string]string{"path": e.store.Path(), "hash": hash, "document": text})
	}
	_, err := fmt.Fprint(e.formatter.Writer, text)
	return err
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	DryRun bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the rule document",
		Long: `Validate a rule document and make it the store's content. Nothing is
written if the document is invalid. Use - to read from stdin.

Examples:
  cloudywindow import rules.json
  cloudywindow export | jq '.rules |= map(select(.id != "x"))' | cloudywindow import -`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runImport(e, opts, args[0], cmd))
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "validate only")
	return cmd
}

func runImport(e *env, opts *ImportOptions, source string, cmd *cobra.Command) error {
	raw, err := readSource(source, cmd.InOrStdin())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return e.formatter.Fail(ExitCommandError, ErrCodeNotFound, "file not found: "+source, nil)
		}
		return e.formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to read "+source, err)
	}

	before, _ := documentHash([]byte(e.bridge.Read()))

	var pretty []byte
	if opts.DryRun {
		pretty, err = e.bridge.Validate(string(raw))
	} else if err = e.bridge.Write(commandContext(cmd), string(raw)); err == nil {
		pretty = []byte(e.bridge.Read())
	}
	if err != nil {
		var ve *editor.ValidationError
		if errors.As(err, &ve) {
			_ = e.formatter.Error(ve.Code, strings.TrimPrefix(ve.Error(), "["+ve.Code+"] "), ve)
			return WrapExitError(ExitFailure, ve.Code+": invalid document", err)
		}
		return e.formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write rules", err)
	}

	res := ImportResult{Status: editor.StatusSaved}
	if opts.DryRun {
		res.Status = "Valid"
	}
	doc, err := ir.DecodeDocument(pretty)
	if err != nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to read rules back", err)
	}
	res.Rules = len(doc.Rules)
	if res.Hash, err = ir.DocumentHash(doc); err != nil {
		return e.formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to hash rules", err)
	}
	res.Changed = res.Hash != before

	if e.formatter.Structured() {
		return e.formatter.Success(res)
	}
	if res.Changed {
		fmt.Fprintln(e.formatter.Writer, res.Status)
	} else {
		fmt.Fprintln(e.formatter.Writer, res.Status+" (unchanged)")
	}
	return nil
}

// NewFormatCommand creates the format command.
func NewFormatCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "format <file|->",
		Short: "Re-indent a rule document without saving",
		Long: `Print a rule document with two-space indentation. Key order and string
escapes are kept and nothing is written; pass the result to import to save it.

Example:
  cloudywindow format draft.json > draft.pretty.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runFormat(e, args[0], cmd))
		},
	}
}

func runFormat(e *env, source string, cmd *cobra.Command) error {
	raw, err := readSource(source, cmd.InOrStdin())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return e.formatter.Fail(ExitCommandError, ErrCodeNotFound, "file not found: "+source, nil)
		}
		return e.formatter.Fail(ExitCommandError, ErrCodeReadFailed, "failed to read "+source, err)
	}
	text, err := e.bridge.Format(string(raw))
	if err != nil {
		var ve *editor.ValidationError
		if errors.As(err, &ve) {
			_ = e.formatter.Error(ve.Code, strings.TrimPrefix(ve.Error(), "["+ve.Code+"] "), ve)
			return WrapExitError(ExitFailure, ve.Code+": invalid document", err)
		}
		return e.formatter.Fail(ExitCommandError, ErrCodeGeneric, "failed to format", err)
	}
	if e.formatter.Structured() {
		return e.formatter.Success(map[string]string{"document": text})
	}
	_, err = fmt.Fprint(e.formatter.Writer, text)
	return err
}

// documentHash hashes the canonical form of a rule document, so documents
// that differ only in whitespace share a hash.
func documentHash(data []byte) (string, error) {
	doc, err := ir.DecodeDocument(data)
	if err != nil {
		return "", err
	}
	return ir.DocumentHash(doc)
}

func readSource(source string, stdin io.Reader) ([]byte, error) {
	if source == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(source)
}
