// Package ir defines the site-CSS rule model shared by every cloudywindow package.
//
// This package contains the persisted types (Document, Rule, Match) and their
// serialization only. All other internal packages import ir; ir imports
// nothing internal.
//
// Key design constraints:
//   - JSON field names match the persisted site-css.json layout (camelCase)
//   - Decoding is tolerant: a bare css string becomes a one-element list and
//     a scalar protocols value becomes a one-element set
//   - Encoding is deterministic: two-space indent, no HTML escaping,
//     NFC-normalized strings, so repeated saves are byte-identical
package ir
