package contentview

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"

	"github.com/roach88/cloudywindow/internal/ir"
)

//go:embed nav.js
var navScript string

// NavBinding is the global function nav.js calls with (url, fresh).
const NavBinding = "__cloudyNav"

// StyleAttr marks style elements added by InjectCSS.
const StyleAttr = "data-cloudy-css"

// styleScript returns JS adding css as a style element. The element is keyed
// by a hash of css so injecting the same fragment twice adds it once.
func styleScript(css string) (string, error) {
	lit, err := ir.MarshalCompact(css)
	if err != nil {
		return "", fmt.Errorf("encode css: %w", err)
	}
	sum := sha256.Sum256([]byte(css))
	key := hex.EncodeToString(sum[:8])
	return fmt.Sprintf(`(function(){var k=%q;`+
		`if(document.querySelector('style[%s="'+k+'"]'))return;`+
		`var s=document.createElement('style');s.setAttribute(%q,k);s.textContent=%s;`+
		`(document.head||document.documentElement).appendChild(s);})();`,
		key, StyleAttr, StyleAttr, lit), nil
}

// clearScript removes every style element added by InjectCSS.
func clearScript() string {
	return fmt.Sprintf(`document.querySelectorAll('style[%s]').forEach(function(s){s.remove();});`, StyleAttr)
}
