// Package extract finds the resource handles a plugin declares in its source.
//
// Matching is lexical: only registration calls whose first argument is a
// quoted literal are recognized. A handle built from a variable, a
// concatenation or a constant is invisible here, and conditional
// registrations are reported as if they always ran.
package extract

import (
	"fmt"
	"regexp"
	"sort"
)

// Kind is the resource family a handle is registered under.
type Kind string

const (
	KindScript Kind = "script"
	KindStyle  Kind = "style"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindScript, KindStyle:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("EXT_KIND: unsupported resource kind %q", s)
	}
}

// Descriptor is one declared resource.
type Descriptor struct {
	Handle string `json:"handle" toml:"handle"`
	Kind   Kind   `json:"type" toml:"type"`
}

func (d Descriptor) String() string { return string(d.Kind) + ":" + d.Handle }

type pattern struct {
	re   *regexp.Regexp
	kind Kind
}

var patterns = []pattern{
	{regexp.MustCompile(`wp_enqueue_script\s*\(\s*['"]([^'"]+)['"]`), KindScript},
	{regexp.MustCompile(`wp_enqueue_style\s*\(\s*['"]([^'"]+)['"]`), KindStyle},
}

type match struct {
	offset int
	desc   Descriptor
}

// Extract returns every declared resource in src, ordered by position.
// A handle declared twice in the same source is returned twice.
func Extract(src string) []Descriptor {
	var found []match
	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(src, -1) {
			found = append(found, match{
				offset: loc[0],
				desc:   Descriptor{Handle: src[loc[2]:loc[3]], Kind: p.kind},
			})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].offset < found[j].offset })
	out := make([]Descriptor, 0, len(found))
	for _, m := range found {
		out = append(out, m.desc)
	}
	return out
}

// ExtractKind returns the declared resources of a single kind, in position order.
func ExtractKind(src string, kind Kind) []Descriptor {
	var out []Descriptor
	for _, p := range patterns {
		if p.kind != kind {
			continue
		}
		for _, m := range p.re.FindAllStringSubmatch(src, -1) {
			out = append(out, Descriptor{Handle: m[1], Kind: kind})
		}
	}
	return out
}

// ExtractGrouped returns all scripts followed by all styles.
func ExtractGrouped(src string) []Descriptor {
	return append(ExtractKind(src, KindScript), ExtractKind(src, KindStyle)...)
}
