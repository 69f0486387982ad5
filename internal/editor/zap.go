package editor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/cloudywindow/internal/ir"
	"github.com/roach88/cloudywindow/internal/journal"
	"github.com/roach88/cloudywindow/internal/picker"
	"github.com/roach88/cloudywindow/internal/store"
)

// AutoZap commits z to the store without review and remembers the new rule
// for Undo. It returns (nil, false) when the store already has the fragment.
func (b *Bridge) AutoZap(ctx context.Context, z *picker.AutoZap) (*ir.Rule, bool) {
	if z == nil || z.CSSText == "" {
		return nil, false
	}
	rule, ok := b.store.Add(ir.Rule{
		Enabled: ir.Bool(true),
		Match:   ir.Match{Host: z.Host},
		CSS:     ir.CSSList{z.CSSText},
		Notes:   fmt.Sprintf("Auto-zap %s: %s", z.Action, z.Selector),
	})
	if !ok {
		b.logger.Debug("auto-zap added nothing", "host", z.Host, "selector", z.Selector)
		return nil, false
	}

	b.mu.Lock()
	b.lastAuto = rule.ID
	b.mu.Unlock()

	payload, _ := json.Marshal(z)
	b.record(ctx, journal.Entry{Kind: journal.KindAutoZap, Host: z.Host, RuleID: rule.ID, Payload: payload})
	b.logger.Info("auto-zap added rule", "id", rule.ID, "host", z.Host, "action", z.Action)
	return rule, true
}

// Undo removes the rule added by the most recent auto-zap. Only one level is
// kept: a second Undo without a new auto-zap does nothing.
func (b *Bridge) Undo(ctx context.Context) (string, bool) {
	b.mu.Lock()
	id := b.lastAuto
	b.lastAuto = ""
	b.mu.Unlock()

	if id == "" && b.undo != nil {
		e, ok, err := b.undo.LastAutoZap(ctx)
		if err != nil {
			b.logger.Warn("journal lookup failed", "error", err)
		} else if ok {
			id = e.RuleID
		}
	}
	if id == "" {
		return "", false
	}

	removed := b.store.Remove(id)
	b.record(ctx, journal.Entry{Kind: journal.KindUndo, RuleID: id})
	if !removed {
		b.logger.Debug("undo target already gone", "id", id)
		return id, false
	}
	return id, true
}

// Reset removes every non-starter rule whose host normalizes to host and
// returns the removed ids. Starter rules always survive.
func (b *Bridge) Reset(ctx context.Context, host string) []string {
	key := store.NormalizeHost(host)
	if key == "" {
		return nil
	}
	removed := b.store.RemoveWhere(func(r ir.Rule) bool {
		return !r.IsStarter() && store.NormalizeHost(r.Match.Host) == key
	})

	b.mu.Lock()
	for _, id := range removed {
		if id == b.lastAuto {
			b.lastAuto = ""
		}
	}
	b.mu.Unlock()

	payload, _ := json.Marshal(map[string]any{"removed": removed})
	b.record(ctx, journal.Entry{Kind: journal.KindReset, Host: host, Payload: payload})
	return removed
}
