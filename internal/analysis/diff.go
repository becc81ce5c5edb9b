package analysis

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"assetguard/internal/extract"
)

// Lines renders the parts of a report that change between passes, one fact
// per line, in report order.
func Lines(r Report) []string {
	out := []string{
		fmt.Sprintf("summary plugins=%d resources=%d duplicates=%d issues=%d",
			r.Summary.TotalPlugins, r.Summary.TotalResources, r.Summary.DuplicateCount, r.Summary.IssuesCount),
	}
	for _, p := range r.Plugins {
		out = append(out, fmt.Sprintf("plugin %s %s resources=%d", p.Name, p.Version, len(p.Resources)))
	}
	for _, d := range r.Duplicates {
		out = append(out, fmt.Sprintf("duplicate %s %s", d.Resource, strings.Join(d.Plugins, " <> ")))
	}
	for _, issue := range r.Issues {
		out = append(out, "issue "+issue)
	}
	return out
}

// Diff returns a unified diff from prev to next. Identical reports give "".
func Diff(prev, next Report) (string, error) {
	a := withNewlines(Lines(prev))
	b := withNewlines(Lines(next))
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: "cached " + prev.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		ToFile:   "current " + next.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"),
		Context:  2,
	})
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}

// Group is every plugin that declared one duplicated resource, original
// owner first.
type Group struct {
	Resource extract.Descriptor
	Owner    string
	Plugins  []string
}

// DuplicateGroups folds the pairwise duplicate list into one group per
// resource, in first-report order.
func DuplicateGroups(r Report) []Group {
	var groups []Group
	index := map[string]int{}
	for _, d := range r.Duplicates {
		key := d.Resource.String()
		i, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, Group{Resource: d.Resource, Owner: d.Plugins[0], Plugins: append([]string(nil), d.Plugins...)})
			continue
		}
		groups[i].Plugins = append(groups[i].Plugins, d.Plugins[1:]...)
	}
	return groups
}
