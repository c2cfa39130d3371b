// Package classify infers which content module a raw record belongs to.
//
// Signals are ranked by trust: explicit backend hints first, then URL
// structure, then the record's field shape, and finally free-text title
// keywords. The first rule that matches decides.
package classify

import (
	"regexp"
	"strings"

	"github.com/rubiojr/marketsearch/pkg/core"
)

// HintFields are concatenated into the explicit-hint haystack.
var HintFields = []string{
	core.ModuleTag, "module", "group", "domain", "collection", "section", "type",
	"category", "kind", "categoryName", "resourceType", "model", "modelName",
	"__typename", "categoryPath",
}

// PathFields are inspected for module-specific URL segments.
var PathFields = []string{"href", "url", "path", "link"}

type keywordRule struct {
	module core.Module
	re     *regexp.Regexp
}

var hintRules = []keywordRule{
	{core.Rentals, regexp.MustCompile(`rent|rental|room|flat|apartment|house`)},
	{core.HomeSwap, regexp.MustCompile(`home[-_ ]?swap|\bswap\b`)},
	{core.Services, regexp.MustCompile(`service|tutor|tutoring|repair|clean|tech|support|education|plumbing|electrician`)},
	{core.Events, regexp.MustCompile(`event|meetup|conference|festival`)},
	{core.Travel, regexp.MustCompile(`travel|trip|tour|flight|itinerary`)},
	{core.Ads, regexp.MustCompile(`\bads?\b|classifieds?|marketplace`)},
}

var pathRules = []keywordRule{
	{core.Rentals, regexp.MustCompile(`/rentals`)},
	{core.HomeSwap, regexp.MustCompile(`/home-?swap`)},
	{core.Services, regexp.MustCompile(`/services`)},
	{core.Events, regexp.MustCompile(`/events`)},
	{core.Travel, regexp.MustCompile(`/travel`)},
	{core.Ads, regexp.MustCompile(`/ads|/classified`)},
}

var titleRules = []keywordRule{
	{core.Rentals, regexp.MustCompile(`\b(rent|rental|room|flat|apartment|studio)\b`)},
	{core.HomeSwap, regexp.MustCompile(`home[-_ ]?swap|house swap|\bswap\b`)},
	{core.Services, regexp.MustCompile(`service|tutor|lesson|repair|plumb|clean|electrician|handyman`)},
}

type shapeRule struct {
	module core.Module
	fields []string
}

var shapeRules = []shapeRule{
	{core.Rentals, []string{"bedrooms", "bathrooms", "rent", "deposit", "address", "city"}},
	{core.HomeSwap, []string{"availableDates", "swapType"}},
	{core.Services, []string{"hourlyRate", "serviceCategory", "skills", "experience"}},
	{core.Events, []string{"startsAt", "startDate", "eventDate", "endDate", "venue"}},
	{core.Travel, []string{"destination", "departure", "itinerary"}},
	{core.Ads, []string{"price", "condition"}},
}

// Rule is one step of the classification chain.
type Rule struct {
	Name  string
	Match func(rec core.Record, path string) core.Module
}

// Chain is the ordered rule list used by Classify.
var Chain = []Rule{
	{"hint", matchHints},
	{"path", matchPath},
	{"shape", matchShape},
	{"title", matchTitle},
}

// Classify returns the module for rec, or core.NoModule when no rule
// matches. path is an optional URL the record was reached through.
func Classify(rec core.Record, path string) core.Module {
	m, _ := Explain(rec, path)
	return m
}

// Explain is Classify that also returns the name of the deciding rule.
func Explain(rec core.Record, path string) (core.Module, string) {
	if rec == nil {
		rec = core.Record{}
	}
	for _, rule := range Chain {
		if m := rule.Match(rec, path); m != core.NoModule {
			return m, rule.Name
		}
	}
	return core.NoModule, ""
}

func firstKeyword(rules []keywordRule, haystack string) core.Module {
	if haystack == "" {
		return core.NoModule
	}
	for _, r := range rules {
		if r.re.MatchString(haystack) {
			return r.module
		}
	}
	return core.NoModule
}

func hintHaystack(rec core.Record) string {
	var parts []string
	for _, field := range HintFields {
		if s := strings.TrimSpace(rec.String(field)); s != "" {
			parts = append(parts, s)
		}
	}
	for _, field := range []string{"breadcrumb", "breadcrumbs"} {
		if crumbs, ok := rec[field].([]any); ok {
			for _, c := range crumbs {
				parts = append(parts, crumbLabel(c))
			}
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func crumbLabel(c any) string {
	if obj, ok := c.(map[string]any); ok {
		if s, ok := core.Record(obj).FirstString("name", "label", "title"); ok {
			return s
		}
	}
	return core.Stringify(c)
}

func matchHints(rec core.Record, _ string) core.Module {
	return firstKeyword(hintRules, hintHaystack(rec))
}

func matchPath(rec core.Record, path string) core.Module {
	candidates := []string{path}
	for _, field := range PathFields {
		if s, ok := rec[field].(string); ok {
			candidates = append(candidates, s)
		}
	}
	for _, c := range candidates {
		if m := firstKeyword(pathRules, strings.ToLower(c)); m != core.NoModule {
			return m
		}
	}
	return core.NoModule
}

func matchShape(rec core.Record, _ string) core.Module {
	for _, r := range shapeRules {
		for _, field := range r.fields {
			if rec.Has(field) {
				return r.module
			}
		}
	}
	return core.NoModule
}

func matchTitle(rec core.Record, _ string) core.Module {
	title, _ := rec.FirstString("title", "name")
	return firstKeyword(titleRules, strings.ToLower(title))
}
