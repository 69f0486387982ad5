package store

import "github.com/roach88/cloudywindow/internal/ir"

// StarterRules returns the built-in transparency helpers seeded into an
// empty store. Every call returns fresh copies.
func StarterRules() []ir.Rule {
	return []ir.Rule{
		{
			ID:      "starter-tldraw",
			Enabled: ir.Bool(true),
			Match:   ir.Match{Host: ".tldraw.com"},
			CSS: ir.CSSList{
				`:root,[data-tl-theme],[data-theme],[data-color-mode]{--tl-color-background:hsla(0 0% 100% / 0)!important;--tlui-color-background:hsla(0 0% 100% / 0)!important;--tlui-color-panel:hsla(0 0% 100% / 0)!important}`,
				`html,body,#root,.tla,.tla-theme-container,.tl-container,.tlui,.tlui__editor,.tlui__container,.tlui__page,.tlui__panel,.tldraw,.tldraw__editor,.tl,.tl-theme{background:transparent!important}`,
				`.tl-background,.tlui-canvas,canvas,svg,[class*='canvas']{background:transparent!important}`,
			},
			Notes: "Make TLDraw app/canvas transparent",
		},
		{
			ID:      "starter-excalidraw",
			Enabled: ir.Bool(true),
			Match:   ir.Match{Host: "excalidraw.com"},
			CSS: ir.CSSList{
				`html,body,#root,.excalidraw,.layer-ui__wrapper,.App{background:transparent!important}`,
				`canvas,svg{background:transparent!important}`,
			},
			Notes: "Make Excalidraw canvas area transparent",
		},
		{
			ID:      "starter-strudel",
			Enabled: ir.Bool(true),
			Match:   ir.Match{Host: ".strudel.cc"},
			CSS: ir.CSSList{
				`html,body,#root,#app,.app,.container,.editor-container,.visualizer,.scene{background:transparent!important}`,
				`.blackscreen,.whitescreen,.greenscreen{background:transparent!important}`,
				`canvas,svg{background:transparent!important}`,
			},
			Notes: "Strudel background transparency (editor/docs)",
		},
		{
			ID:      "starter-ertdfgcvb",
			Enabled: ir.Bool(true),
			Match:   ir.Match{Host: "play.ertdfgcvb.xyz"},
			CSS: ir.CSSList{
				`html,body,#root,#app,.app,.container{background:transparent!important}`,
				`canvas,svg{background:transparent!important}`,
			},
			Notes: "Make play.ertdfgcvb.xyz background transparent",
		},
		{
			ID:      "starter-cables",
			Enabled: ir.Bool(true),
			Match:   ir.Match{Host: ".cables.gl"},
			CSS: ir.CSSList{
				`html,body,#root,#app,.workspace,.editor,.viewport,.content{background:transparent!important}`,
				`canvas,svg{background:transparent!important}`,
			},
			Notes: "Cables editor/runtime transparency",
		},
		{
			ID:      "starter-unit",
			Enabled: ir.Bool(true),
			Match:   ir.Match{Host: ".unit.moe"},
			CSS: ir.CSSList{
				`html,body,#root,#app,.app,.container,.editor,.workspace,.main,.page{background:transparent!important}`,
				`canvas,svg{background:transparent!important}`,
			},
			Notes: "Unit background transparency",
		},
	}
}

// DefaultDocument returns a document holding the given starters.
func DefaultDocument(starters []ir.Rule) *ir.Document {
	doc := &ir.Document{Version: ir.DocumentVersion, Rules: make([]ir.Rule, len(starters))}
	for i := range starters {
		doc.Rules[i] = starters[i].Clone()
	}
	return doc
}
