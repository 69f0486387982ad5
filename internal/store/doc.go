// Package store holds the persistent collection of per-site CSS rules.
//
// A Store is created with New and loads its backing JSON document lazily on
// first use. Mutations are applied in memory and written back after a short
// debounce; Flush forces a synchronous write. When the backing file is
// missing, empty or unreadable the store falls back to the built-in starter
// rules.
//
// Host matching treats "example.com" and ".example.com" the same way: both
// match the apex host and every subdomain, never a host that merely ends with
// the same characters ("notexample.com").
package store
