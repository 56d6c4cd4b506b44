// Package vector classifies summary vectors by name and resolves wildcard
// vector selections. Classification is purely syntactic over the naming
// convention and never touches data: the class drives which interpolation
// rule the resampler is allowed to use.
package vector

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/resviz/ensembleprov/internal/models"
)

// Hint is rate/total metadata declared by the data source itself. When
// present it overrides the syntactic rule.
type Hint int

const (
	HintNone Hint = iota
	HintRate
	HintTotal
)

var ratioSuffixes = []string{"WCT", "GOR", "OGR", "WGR", "GLR"}

// ParseAnnotated splits a column header or manifest entry into the vector
// name and an optional declared rate/total annotation:
// "FOPR[rate]" -> ("FOPR", HintRate).
func ParseAnnotated(cell string) (string, Hint) {
	if strings.HasSuffix(cell, "[rate]") {
		return strings.TrimSuffix(cell, "[rate]"), HintRate
	}
	if strings.HasSuffix(cell, "[total]") {
		return strings.TrimSuffix(cell, "[total]"), HintTotal
	}
	return cell, HintNone
}

// Annotate is the inverse of ParseAnnotated, used when persisting resolved
// column sets so hints survive a frozen deployment.
func Annotate(name string, hint Hint) string {
	switch hint {
	case HintRate:
		return name + "[rate]"
	case HintTotal:
		return name + "[total]"
	}
	return name
}

// Classify derives the semantic class of a vector name. Names follow the
// KEYWORD or KEYWORD:LOCATOR convention (e.g. FOPR, WOPR:OP_1). Ambiguous
// names are Unclassified, never guessed.
func Classify(name string) models.VectorClass {
	keyword := keywordOf(name)
	if isHistorical(keyword) {
		return models.ClassHistorical
	}
	return classifyKeyword(keyword)
}

// ClassifyWithHint is Classify with a source-declared rate/total override.
func ClassifyWithHint(name string, hint Hint) models.VectorClass {
	switch hint {
	case HintRate:
		return models.ClassRate
	case HintTotal:
		return models.ClassCumulative
	}
	return Classify(name)
}

// BaseOf returns the non-historical base vector paired with a historical
// counterpart (FOPTH -> FOPT), so both can be drawn as reference lines.
// The second return is false for non-historical names.
func BaseOf(name string) (string, bool) {
	keyword := keywordOf(name)
	if !isHistorical(keyword) {
		return "", false
	}
	base := strings.TrimSuffix(keyword, "H")
	if locator, ok := locatorOf(name); ok {
		return base + ":" + locator, true
	}
	return base, true
}

// Resolve expands wildcard patterns against the discovered vector universe
// and returns the sorted, de-duplicated concrete names. Resolution is a pure
// function so it can be tested independent of I/O, and its output feeds
// cache fingerprints.
func Resolve(patterns, universe []string) ([]string, error) {
	matched := make(map[string]bool)
	for _, p := range patterns {
		if !strings.ContainsAny(p, "*?[") {
			for _, name := range universe {
				if name == p {
					matched[name] = true
				}
			}
			continue
		}
		for _, name := range universe {
			ok, err := path.Match(p, name)
			if err != nil {
				return nil, fmt.Errorf("bad vector pattern %q: %w", p, err)
			}
			if ok {
				matched[name] = true
			}
		}
	}
	names := make([]string, 0, len(matched))
	for name := range matched {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func keywordOf(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}

func locatorOf(name string) (string, bool) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:], true
	}
	return "", false
}

// isHistorical: a trailing H marks the observed-history counterpart, but only
// when the trimmed base is itself a classifiable vector (FOPTH yes, FLASH no).
func isHistorical(keyword string) bool {
	if len(keyword) < 3 || !strings.HasSuffix(keyword, "H") {
		return false
	}
	return classifyKeyword(strings.TrimSuffix(keyword, "H")) != models.ClassUnclassified
}

func classifyKeyword(keyword string) models.VectorClass {
	// Suffix rules need a category prefix in front of them: FOPR is a rate
	// but FPR (field pressure) is not, so three-letter keywords never match.
	if len(keyword) < 4 {
		return models.ClassUnclassified
	}
	for _, s := range ratioSuffixes {
		if strings.HasSuffix(keyword, s) {
			return models.ClassRatio
		}
	}
	switch {
	case strings.HasSuffix(keyword, "PT"), strings.HasSuffix(keyword, "IT"):
		return models.ClassCumulative
	case strings.HasSuffix(keyword, "PR"), strings.HasSuffix(keyword, "IR"):
		return models.ClassRate
	}
	return models.ClassUnclassified
}
