package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/cloudywindow/internal/journal"
	"github.com/roach88/cloudywindow/internal/picker"
)

// Status messages shown on the surface.
const (
	StatusLoaded       = "Loaded"
	StatusSaved        = "Saved"
	StatusFormatted    = "Formatted"
	StatusDraftInvalid = "Current JSON invalid; fix it to auto-insert rule"
	StatusCancelled    = "Picker cancelled"
	StatusNothingUndo  = "Nothing to undo"
)

// Dispatch applies a decoded picker event and updates the surface.
//
// Picks are staged into the draft, auto-zaps and resets go to the store, and
// cancel only changes the status line.
func (b *Bridge) Dispatch(ctx context.Context, ev picker.Event) error {
	switch ev.Type {
	case picker.EventPicked:
		return b.dispatchPick(ctx, ev)

	case picker.EventAutoZap:
		rule, ok := b.AutoZap(ctx, ev.AutoZap)
		if !ok {
			b.status(fmt.Sprintf("Nothing new to add for %s", siteName(ev.Location.Host)))
			return nil
		}
		text := b.Load()
		b.text(text)
		b.status(fmt.Sprintf("Auto-added rule %s%s", rule.ID, lineSuffix(text, rule.ID)))
		return nil

	case picker.EventUndo:
		id, ok := b.Undo(ctx)
		if !ok {
			b.status(StatusNothingUndo)
			return nil
		}
		b.text(b.Load())
		b.status("Removed rule " + id)
		return nil

	case picker.EventReset:
		if ev.Reset == nil {
			return fmt.Errorf("%w: reset without payload", picker.ErrInvalidEvent)
		}
		removed := b.Reset(ctx, ev.Reset.Host)
		b.text(b.Load())
		b.status(fmt.Sprintf("Removed %d rule(s) for %s", len(removed), ev.Reset.Host))
		return nil

	case picker.EventCancel:
		b.record(ctx, journal.Entry{Kind: journal.KindCancel, Host: ev.Location.Host})
		b.status(StatusCancelled)
		return nil

	default:
		return fmt.Errorf("%w: unknown type %q", picker.ErrInvalidEvent, ev.Type)
	}
}

func (b *Bridge) dispatchPick(ctx context.Context, ev picker.Event) error {
	text, id, err := b.StagePick(b.Draft(), ev.Picked, b.hint)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			b.status(StatusDraftInvalid)
		} else {
			b.status("Insert error: " + err.Error())
		}
		return err
	}

	b.SetDraft(text)
	b.text(text)
	b.status(fmt.Sprintf("Inserted rule for %s; review and Save%s", siteName(ev.Picked.Host), lineSuffix(text, id)))

	payload, _ := json.Marshal(ev.Picked)
	b.record(ctx, journal.Entry{Kind: journal.KindPicked, Host: ev.Picked.Host, RuleID: id, Payload: payload})
	return nil
}

func (b *Bridge) text(s string) {
	if sf := b.currentSurface(); sf != nil {
		sf.SetText(s)
	}
}

func (b *Bridge) status(s string) {
	if sf := b.currentSurface(); sf != nil {
		sf.SetStatus(s)
	}
}

func (b *Bridge) currentSurface() Surface {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.surface
}

func siteName(host string) string {
	if host == "" {
		return "site"
	}
	return host
}

func lineSuffix(text, id string) string {
	if pos, ok := Locate(text, id); ok {
		return fmt.Sprintf(" (line %d)", pos.Line)
	}
	return ""
}
