package analysis

import (
	"strings"

	"github.com/gobwas/glob"
)

// Heuristic labels derived from tag and class naming conventions. Patterns
// are matched against the lowercased class attribute; tags take precedence
// when they are unambiguous.

type labelPattern struct {
	pattern glob.Glob
	label   string
}

var subtreePatterns = []labelPattern{
	{glob.MustCompile("*nav*"), "navigation"},
	{glob.MustCompile("*menu*"), "navigation"},
	{glob.MustCompile("*sidebar*"), "sidebar"},
	{glob.MustCompile("*table*"), "data table"},
	{glob.MustCompile("*grid*"), "data grid"},
	{glob.MustCompile("*list*"), "item list"},
	{glob.MustCompile("*feed*"), "content feed"},
	{glob.MustCompile("*carousel*"), "carousel"},
	{glob.MustCompile("*footer*"), "footer"},
	{glob.MustCompile("*header*"), "header"},
	{glob.MustCompile("*comment*"), "comment thread"},
}

var subtreeTags = map[string]string{
	"nav":    "navigation",
	"table":  "data table",
	"ul":     "item list",
	"ol":     "item list",
	"form":   "form",
	"footer": "footer",
	"header": "header",
	"aside":  "sidebar",
}

// subtreeLabel classifies a large subtree by tag, then class conventions.
func subtreeLabel(tag, className string) string {
	if label, ok := subtreeTags[strings.ToLower(tag)]; ok {
		return label
	}
	lower := strings.ToLower(className)
	for _, p := range subtreePatterns {
		if p.pattern.Match(lower) {
			return p.label
		}
	}
	return "content"
}

var fixedPatterns = []labelPattern{
	{glob.MustCompile("*cookie*"), "cookie banner"},
	{glob.MustCompile("*consent*"), "cookie banner"},
	{glob.MustCompile("*banner*"), "banner"},
	{glob.MustCompile("*toolbar*"), "toolbar"},
	{glob.MustCompile("*nav*"), "sticky navigation"},
	{glob.MustCompile("*header*"), "sticky header"},
	{glob.MustCompile("*footer*"), "sticky footer"},
	{glob.MustCompile("*chat*"), "chat widget"},
	{glob.MustCompile("*modal*"), "overlay"},
	{glob.MustCompile("*overlay*"), "overlay"},
	{glob.MustCompile("*toast*"), "notification"},
	{glob.MustCompile("*notification*"), "notification"},
}

var fixedTags = map[string]string{
	"nav":    "sticky navigation",
	"header": "sticky header",
	"footer": "sticky footer",
	"dialog": "overlay",
}

// fixedPurpose classifies a fixed-position element.
func fixedPurpose(tag, className string) string {
	if label, ok := fixedTags[strings.ToLower(tag)]; ok {
		return label
	}
	lower := strings.ToLower(className)
	for _, p := range fixedPatterns {
		if p.pattern.Match(lower) {
			return p.label
		}
	}
	return "unknown"
}
