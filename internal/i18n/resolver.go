// Package i18n resolves text keys into user-facing text for a locale.
//
// Lookup is two-level: the requested locale's table, then the default
// locale's table. When both miss, the key's symbolic name is returned so a
// gap in a table is visible instead of silent. Resolution never fails.
package i18n

import (
	"fmt"
	"sort"
	"strings"
)

// Resolver is immutable after New and safe for concurrent use.
type Resolver struct {
	def string
}

// New returns a resolver that falls back to defaultLocale.
func New(defaultLocale string) (*Resolver, error) {
	loc := normalize(defaultLocale)
	if _, ok := catalogs[loc]; !ok {
		return nil, fmt.Errorf("i18n: default locale %q has no catalog (supported: %s)", defaultLocale, strings.Join(Supported(), ", "))
	}
	return &Resolver{def: loc}, nil
}

// Default returns the fallback locale code.
func (r *Resolver) Default() string { return r.def }

// Text renders key for locale. Positional args are applied in order with
// fmt verbs; a template is returned untouched when no args are given.
func (r *Resolver) Text(locale string, key Key, args ...any) string {
	tpl, ok := lookup(normalize(locale), key)
	if !ok {
		tpl, ok = lookup(r.def, key)
	}
	if !ok {
		return key.String()
	}
	if len(args) == 0 {
		return tpl
	}
	return fmt.Sprintf(tpl, args...)
}

// Resolve maps an arbitrary code (e.g. a stored or user-typed one) onto a
// supported locale, falling back to the default.
func (r *Resolver) Resolve(locale string) string {
	loc := normalize(locale)
	if Has(loc) {
		return loc
	}
	return r.def
}

func lookup(locale string, key Key) (string, bool) {
	if key < 0 || key >= keyCount {
		return "", false
	}
	t, ok := catalogs[locale]
	if !ok || t == nil {
		return "", false
	}
	s := t[key]
	return s, s != ""
}

// Has reports whether locale has a table.
func Has(locale string) bool {
	_, ok := catalogs[normalize(locale)]
	return ok
}

// Supported lists locale codes in stable order.
func Supported() []string {
	out := make([]string, 0, len(catalogs))
	for k := range catalogs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Label is the human name of a locale, or the code itself.
func Label(locale string) string {
	loc := normalize(locale)
	if l, ok := labels[loc]; ok {
		return l
	}
	return loc
}

// normalize lowercases and strips a region suffix ("en-US" -> "en").
func normalize(locale string) string {
	loc := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(loc, "-_"); i > 0 {
		loc = loc[:i]
	}
	return loc
}
