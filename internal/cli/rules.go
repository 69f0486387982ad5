package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/roach88/cloudywindow/internal/cssfrag"
	"github.com/roach88/cloudywindow/internal/ir"
	"github.com/roach88/cloudywindow/internal/journal"
	"github.com/roach88/cloudywindow/internal/store"
)

// anyHost labels rules without a host in text output.
const anyHost = "(any host)"

// MatchResult is the output of the match command.
type MatchResult struct {
	URL       string   `json:"url" yaml:"url"`
	Fragments []string `json:"fragments" yaml:"fragments"`
}

// CompactResult is the output of the compact command.
type CompactResult struct {
	Host    string `json:"host,omitempty" yaml:"host,omitempty"`
	Changed bool   `json:"changed" yaml:"changed"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		Long: `List the rules in the store, in store order.

With --host only rules that apply to that host are shown, including rules
without a host.

Examples:
  cloudywindow list
  cloudywindow list --host www.youtube.com --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runList(e, host))
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "only rules applying to this host")
	return cmd
}

func runList(e *env, host string) error {
	rules := e.store.List()
	if host != "" {
		want := store.NormalizeHost(host)
		kept := rules[:0]
		for _, r := range rules {
			if store.HostMatches(r.Match.Host, want) {
				kept = append(kept, r)
			}
		}
		rules = kept
	}

	if e.formatter.Structured() {
		return e.formatter.Success(rules)
	}
	if len(rules) == 0 {
		fmt.Fprintln(e.formatter.Writer, "No rules")
		return nil
	}
	fmt.Fprint(e.formatter.Writer, ruleTree(e.store.Path(), rules))
	return nil
}

// ruleTree renders rules grouped by host, hosts in first-seen order.
func ruleTree(title string, rules []ir.Rule) string {
	tree := treeprint.New()
	tree.SetValue(title)

	groups := map[string]treeprint.Tree{}
	for _, r := range rules {
		key := store.NormalizeHost(r.Match.Host)
		if key == "" {
			key = anyHost
		}
		branch, ok := groups[key]
		if !ok {
			branch = tree.AddBranch(key)
			groups[key] = branch
		}
		node := branch.AddBranch(ruleLabel(r))
		for _, css := range r.CSS {
			node.AddNode(css)
		}
	}
	return tree.String()
}

func ruleLabel(r ir.Rule) string {
	var b strings.Builder
	b.WriteString(r.ID)
	if !r.IsEnabled() {
		b.WriteString(" [disabled]")
	}
	if r.Match.PathPrefix != "" {
		b.WriteString(" path=" + r.Match.PathPrefix)
	}
	if len(r.Match.Protocols) > 0 {
		b.WriteString(" protocols=" + strings.Join(r.Match.Protocols, ","))
	}
	if r.Notes != "" {
		b.WriteString(" # " + r.Notes)
	}
	return b.String()
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "match <url>",
		Short: "Show the CSS that would be injected for a URL",
		Long: `Show the CSS fragments injected for a URL, in injection order.

Exits with code 1 when nothing matches.

Example:
  cloudywindow match https://www.tldraw.com/`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runMatch(e, args[0]))
		},
	}
}

func runMatch(e *env, url string) error {
	res := MatchResult{URL: url, Fragments: e.store.GetMatching(url)}
	if e.formatter.Structured() {
		if err := e.formatter.Success(res); err != nil {
			return err
		}
	} else {
		for _, css := range res.Fragments {
			fmt.Fprintln(e.formatter.Writer, css)
		}
	}
	if len(res.Fragments) == 0 {
		if !e.formatter.Structured() {
			fmt.Fprintf(e.formatter.GetErrWriter(), "No rules match %s\n", url)
		}
		return NewExitError(ExitFailure, "no rules match "+url)
	}
	return nil
}

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	ID         string
	Host       string
	PathPrefix string
	Protocols  []string
	CSS        []string
	Notes      string
	Disabled   bool
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a rule",
		Long: `Add a rule. Fragments already present for the same host are dropped;
if nothing new is left the store is unchanged and the command exits with 1.

Examples:
  cloudywindow add --host youtube.com --css '#masthead{display:none!important}'
  cloudywindow add --host example.com --path-prefix /docs --protocol https --css 'body{background:transparent!important}' --notes docs`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runAdd(e, opts, cmd))
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "rule id (default: generated)")
	cmd.Flags().StringVar(&opts.Host, "host", "", "host or host suffix")
	cmd.Flags().StringVar(&opts.PathPrefix, "path-prefix", "", "URL path prefix")
	cmd.Flags().StringSliceVar(&opts.Protocols, "protocol", nil, "URL scheme without colon (repeatable)")
	cmd.Flags().StringArrayVar(&opts.CSS, "css", nil, "CSS fragment (repeatable, required)")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "free-form notes")
	cmd.Flags().BoolVar(&opts.Disabled, "disabled", false, "add the rule disabled")
	_ = cmd.MarkFlagRequired("css")

	return cmd
}

func runAdd(e *env, opts *AddOptions, cmd *cobra.Command) error {
	for _, css := range opts.CSS {
		if err := cssfrag.Validate(css); err != nil {
			return e.formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("invalid css %q", css), err)
		}
		warnSelectorless(e.formatter, css)
	}

	rule := ir.Rule{
		ID:      opts.ID,
		Enabled: ir.Bool(!opts.Disabled),
		Match: ir.Match{
			Host:       opts.Host,
			PathPrefix: opts.PathPrefix,
			Protocols:  ir.Protocols(opts.Protocols),
		},
		CSS:   ir.CSSList(opts.CSS),
		Notes: opts.Notes,
	}
	added, ok := e.store.Add(rule)
	if !ok {
		_ = e.formatter.Error(ErrCodeGeneric, "nothing new to add", nil)
		return NewExitError(ExitFailure, "nothing new to add")
	}
	e.record(commandContext(cmd), journal.Entry{Kind: journal.KindAdd, Host: added.Match.Host, RuleID: added.ID})

	if e.formatter.Structured() {
		return e.formatter.Success(added)
	}
	fmt.Fprintf(e.formatter.Writer, "Added rule %s\n", added.ID)
	return nil
}

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Enable  bool
	Disable bool
	Notes   string
	CSS     []string
	Host    string
}

// warnSelectorless tells the user when a fragment targets no element, such
// as an empty @media block. The fragment is still stored.
func warnSelectorless(f *OutputFormatter, css string) {
	sels, err := cssfrag.Selectors(css)
	if err != nil {
		return
	}
	if len(sels) == 0 {
		fmt.Fprintf(f.GetErrWriter(), "Warning: css %q has no selector and styles nothing\n", css)
		return
	}
	f.VerboseLog("selectors: %s", strings.Join(sels, ", "))
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a rule",
		Long: `Change fields of an existing rule. Only the flags given are applied.
--css replaces the rule's fragments.

Examples:
  cloudywindow update starter-youtube --disable
  cloudywindow update 0190f1c2-... --notes "header only" --css 'header{opacity:.25!important}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runUpdate(e, opts, args[0], cmd))
		},
	}

	cmd.Flags().BoolVar(&opts.Enable, "enable", false, "enable the rule")
	cmd.Flags().BoolVar(&opts.Disable, "disable", false, "disable the rule")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "replace notes")
	cmd.Flags().StringArrayVar(&opts.CSS, "css", nil, "replace CSS fragments (repeatable)")
	cmd.Flags().StringVar(&opts.Host, "host", "", "replace the host")
	cmd.MarkFlagsMutuallyExclusive("enable", "disable")

	return cmd
}

func runUpdate(e *env, opts *UpdateOptions, id string, cmd *cobra.Command) error {
	current, found := e.store.Get(id)
	if !found {
		return e.formatter.Fail(ExitFailure, ErrCodeNotFound, "no rule with id "+id, nil)
	}

	var patch store.RulePatch
	flags := cmd.Flags()
	switch {
	case opts.Enable:
		patch.Enabled = ir.Bool(true)
	case opts.Disable:
		patch.Enabled = ir.Bool(false)
	}
	if flags.Changed("notes") {
		patch.Notes = &opts.Notes
	}
	if flags.Changed("css") {
		for _, css := range opts.CSS {
			if err := cssfrag.Validate(css); err != nil {
				return e.formatter.Fail(ExitCommandError, ErrCodeInvalidArg, fmt.Sprintf("invalid css %q", css), err)
			}
			warnSelectorless(e.formatter, css)
		}
		patch.CSS = ir.CSSList(opts.CSS)
	}
	if flags.Changed("host") {
		m := current.Match
		m.Host = opts.Host
		patch.Match = &m
	}

	updated, ok := e.store.Update(id, patch)
	if !ok {
		return e.formatter.Fail(ExitFailure, ErrCodeInvalidArg, "update would leave rule "+id+" without new css", nil)
	}
	if e.formatter.Structured() {
		return e.formatter.Success(updated)
	}
	fmt.Fprintf(e.formatter.Writer, "Updated rule %s\n", updated.ID)
	return nil
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <id>",
		Aliases:       []string{"rm"},
		Short:         "Remove a rule",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runRemove(e, args[0], cmd))
		},
	}
}

func runRemove(e *env, id string, cmd *cobra.Command) error {
	rule, found := e.store.Get(id)
	if !found || !e.store.Remove(id) {
		return e.formatter.Fail(ExitFailure, ErrCodeNotFound, "no rule with id "+id, nil)
	}
	e.record(commandContext(cmd), journal.Entry{Kind: journal.KindRemove, Host: rule.Match.Host, RuleID: id})

	if e.formatter.Structured() {
		return e.formatter.Success(map[string]string{"removed": id})
	}
	fmt.Fprintf(e.formatter.Writer, "Removed rule %s\n", id)
	return nil
}

// NewCompactCommand creates the compact command.
func NewCompactCommand(rootOpts *RootOptions) *cobra.Command {
	var host string

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Drop duplicate and empty fragments",
		Long: `Remove blank and duplicate CSS fragments within each host, and rules
left with no fragments. Running it twice changes nothing the second time.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			return e.finish(runCompact(e, host, cmd))
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "only compact this host")
	return cmd
}

func runCompact(e *env, host string, cmd *cobra.Command) error {
	changed := e.bridge.Compact(commandContext(cmd), host)
	res := CompactResult{Host: store.NormalizeHost(host), Changed: changed}
	if e.formatter.Structured() {
		return e.formatter.Success(res)
	}
	if changed {
		fmt.Fprintln(e.formatter.Writer, "Compacted")
	} else {
		fmt.Fprintln(e.formatter.Writer, "Already compact")
	}
	return nil
}
