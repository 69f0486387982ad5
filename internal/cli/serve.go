package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cloudywindow/internal/editor"
	"github.com/roach88/cloudywindow/internal/ir"
	"github.com/roach88/cloudywindow/internal/journal"
	"github.com/roach88/cloudywindow/internal/picker"
	"github.com/roach88/cloudywindow/internal/store"
)

// MCPConfig holds MCP server configuration.
type MCPConfig struct {
	Transport string
	Port      int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cfg := MCPConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rule operations over MCP",
		Long: `Start an MCP server exposing the rule store, the picker's auto-zap and
undo, and document import/export as tools.

Examples:
  cloudywindow serve
  cloudywindow serve --transport streamable-http --port 8765`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(rootOpts, cmd)
			if err != nil {
				return err
			}
			s := newMCPServer(e)
			e.logger.Info("mcp server starting", "transport", cfg.Transport, "store", e.store.Path())
			return e.finish(s.serve(cfg))
		},
	}

	cmd.Flags().StringVar(&cfg.Transport, "transport", "stdio", "stdio or streamable-http")
	cmd.Flags().IntVar(&cfg.Port, "port", 8765, "port for streamable-http")
	return cmd
}

// mcpServer exposes an env as MCP tools.
type mcpServer struct {
	env *env
	mu  sync.Mutex
	mcp *mcpserver.MCPServer
}

func newMCPServer(e *env) *mcpServer {
	s := &mcpServer{env: e}
	s.mcp = mcpserver.NewMCPServer("cloudywindow", ir.AppVersion)
	s.registerTools()
	return s
}

// serve starts the MCP server with the configured transport.
func (s *mcpServer) serve(cfg MCPConfig) error {
	switch cfg.Transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		return httpServer.Start(fmt.Sprintf(":%d", cfg.Port))
	default:
		return s.env.formatter.Fail(ExitCommandError, ErrCodeInvalidArg,
			fmt.Sprintf("unsupported transport: %s (use stdio or streamable-http)", cfg.Transport), nil)
	}
}

func (s *mcpServer) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool("list_rules",
			mcp.WithDescription("List site CSS rules in store order"),
			mcp.WithString("host", mcp.Description("Only rules applying to this host")),
		),
		s.handleListRules,
	)

	s.mcp.AddTool(
		mcp.NewTool("match_url",
			mcp.WithDescription("Return the CSS fragments injected for a URL, in injection order"),
			mcp.WithString("url", mcp.Required(), mcp.Description("Absolute page URL")),
		),
		s.handleMatchURL,
	)

	s.mcp.AddTool(
		mcp.NewTool("add_rule",
			mcp.WithDescription("Add a rule. Fragments the host already has are dropped."),
			mcp.WithArray("css", mcp.Required(), mcp.Items(map[string]any{"type": "string"}), mcp.Description("CSS fragments")),
			mcp.WithString("host", mcp.Description("Host or host suffix, e.g. youtube.com")),
			mcp.WithString("path_prefix", mcp.Description("URL path prefix")),
			mcp.WithArray("protocols", mcp.Items(map[string]any{"type": "string"}), mcp.Description("URL schemes without colon")),
			mcp.WithString("notes", mcp.Description("Free-form notes")),
		),
		s.handleAddRule,
	)

	s.mcp.AddTool(
		mcp.NewTool("remove_rule",
			mcp.WithDescription("Remove a rule by id"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Rule id")),
		),
		s.handleRemoveRule,
	)

	s.mcp.AddTool(
		mcp.NewTool("compact",
			mcp.WithDescription("Drop blank and duplicate fragments per host"),
			mcp.WithString("host", mcp.Description("Only this host (default: all)")),
		),
		s.handleCompact,
	)

	s.mcp.AddTool(
		mcp.NewTool("reset_host",
			mcp.WithDescription("Remove every non-starter rule for a host"),
			mcp.WithString("host", mcp.Required(), mcp.Description("Host to reset")),
		),
		s.handleResetHost,
	)

	s.mcp.AddTool(
		mcp.NewTool("auto_zap",
			mcp.WithDescription("Make an element transparent, hide it or dim it on a site, as the picker's auto-zap does"),
			mcp.WithString("url", mcp.Required(), mcp.Description("Page URL; the rule applies to its host")),
			mcp.WithString("selector", mcp.Description("CSS selector of the element (ignored for page)")),
			mcp.WithString("action", mcp.Description("transparent, hide, dim or page (default: transparent)")),
		),
		s.handleAutoZap,
	)

	s.mcp.AddTool(
		mcp.NewTool("undo_zap",
			mcp.WithDescription("Remove the rule added by the most recent auto-zap"),
		),
		s.handleUndoZap,
	)

	s.mcp.AddTool(
		mcp.NewTool("export_document",
			mcp.WithDescription("Return the full site-css.json document"),
		),
		s.handleExportDocument,
	)

	s.mcp.AddTool(
		mcp.NewTool("import_document",
			mcp.WithDescription("Validate and replace the full site-css.json document"),
			mcp.WithString("document", mcp.Required(), mcp.Description("JSON document with a rules array")),
		),
		s.handleImportDocument,
	)
}

// locked runs fn against a store synced with disk and flushes afterwards so
// other processes see the change.
func (s *mcpServer) locked(fn func() (*mcp.CallToolResult, error)) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.env.store.Reload(store.ReloadFlush); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := fn()
	if flushErr := s.env.store.Flush(); flushErr != nil {
		return mcp.NewToolResultError("save failed: " + flushErr.Error()), nil
	}
	return res, err
}

func yamlResult(v any) *mcp.CallToolResult {
	b, err := yaml.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(b))
}

func (s *mcpServer) handleListRules(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	host := StringParam(request.GetArguments(), "host", "")
	return s.locked(func() (*mcp.CallToolResult, error) {
		rules := s.env.store.List()
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
		return yamlResult(rules), nil
	})
}

func (s *mcpServer) handleMatchURL(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url := StringParam(request.GetArguments(), "url", "")
	if url == "" {
		return mcp.NewToolResultError("url is required"), nil
	}
	return s.locked(func() (*mcp.CallToolResult, error) {
		return yamlResult(MatchResult{URL: url, Fragments: s.env.store.GetMatching(url)}), nil
	})
}

func (s *mcpServer) handleAddRule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	css := StringsParam(params, "css")
	if len(css) == 0 {
		return mcp.NewToolResultError("css is required"), nil
	}
	rule := ir.Rule{
		Match: ir.Match{
			Host:       StringParam(params, "host", ""),
			PathPrefix: StringParam(params, "path_prefix", ""),
			Protocols:  ir.Protocols(StringsParam(params, "protocols")),
		},
		CSS:   ir.CSSList(css),
		Notes: StringParam(params, "notes", ""),
	}
	return s.locked(func() (*mcp.CallToolResult, error) {
		added, ok := s.env.store.Add(rule)
		if !ok {
			return mcp.NewToolResultError("nothing new to add"), nil
		}
		s.env.record(ctx, journal.Entry{Kind: journal.KindAdd, Host: added.Match.Host, RuleID: added.ID})
		return yamlResult(added), nil
	})
}

func (s *mcpServer) handleRemoveRule(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := StringParam(request.GetArguments(), "id", "")
	return s.locked(func() (*mcp.CallToolResult, error) {
		rule, found := s.env.store.Get(id)
		if !found || !s.env.store.Remove(id) {
			return mcp.NewToolResultError("no rule with id " + id), nil
		}
		s.env.record(ctx, journal.Entry{Kind: journal.KindRemove, Host: rule.Match.Host, RuleID: id})
		return yamlResult(map[string]string{"removed": id}), nil
	})
}

func (s *mcpServer) handleCompact(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	host := StringParam(request.GetArguments(), "host", "")
	return s.locked(func() (*mcp.CallToolResult, error) {
		changed := s.env.bridge.Compact(ctx, host)
		return yamlResult(CompactResult{Host: store.NormalizeHost(host), Changed: changed}), nil
	})
}

func (s *mcpServer) handleResetHost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	host := StringParam(request.GetArguments(), "host", "")
	if strings.TrimSpace(host) == "" {
		return mcp.NewToolResultError("host is required"), nil
	}
	return s.locked(func() (*mcp.CallToolResult, error) {
		removed := s.env.bridge.Reset(ctx, host)
		if removed == nil {
			removed = []string{}
		}
		return yamlResult(ResetResult{Host: host, Removed: removed}), nil
	})
}

func (s *mcpServer) handleAutoZap(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	msg, err := ir.MarshalCompact(map[string]any{
		"type": picker.EventAutoZap,
		"payload": map[string]string{
			"url":      StringParam(params, "url", ""),
			"selector": StringParam(params, "selector", ""),
			"action":   StringParam(params, "action", string(picker.ActionTransparent)),
		},
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ev, err := picker.Decode(msg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ev.AutoZap.Host == "" {
		return mcp.NewToolResultError("url has no host"), nil
	}
	return s.locked(func() (*mcp.CallToolResult, error) {
		rule, ok := s.env.bridge.AutoZap(ctx, ev.AutoZap)
		if !ok {
			return mcp.NewToolResultError("nothing new to add for " + ev.AutoZap.Host), nil
		}
		return yamlResult(ZapResult{Rule: rule}), nil
	})
}

func (s *mcpServer) handleUndoZap(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.locked(func() (*mcp.CallToolResult, error) {
		id, ok := s.env.bridge.Undo(ctx)
		if !ok {
			return mcp.NewToolResultError("nothing to undo"), nil
		}
		return yamlResult(map[string]string{"removed": id}), nil
	})
}

func (s *mcpServer) handleExportDocument(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.locked(func() (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(s.env.bridge.Read()), nil
	})
}

func (s *mcpServer) handleImportDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc := StringParam(request.GetArguments(), "document", "")
	return s.locked(func() (*mcp.CallToolResult, error) {
		if err := s.env.bridge.Write(ctx, doc); err != nil {
			var ve *editor.ValidationError
			if errors.As(err, &ve) {
				return mcp.NewToolResultError(ve.Error()), nil
			}
			return mcp.NewToolResultError(err.Error()), nil
		}
		return yamlResult(map[string]any{"status": editor.StatusSaved, "rules": len(s.env.store.List())}), nil
	})
}

// StringParam reads a string argument.
func StringParam(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return def
}

// StringsParam reads an argument that may be a string or a list of strings.
func StringsParam(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
