// Package probe locates portal controls in a rendered document. A probe
// is a pure function over a parsed snapshot, candidates are tried in a
// fixed order and the first match wins.
package probe

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"rosteriq-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Hit is what a probe found: a selector usable with the browser and the
// element's visible text.
type Hit struct {
	Probe    string
	Selector string
	Text     string
}

type Probe struct {
	Name  string
	Match func(doc *goquery.Document) (Hit, bool)
}

// First runs probes in order and returns the first hit.
func First(doc *goquery.Document, probes []Probe) (Hit, bool) {
	for _, p := range probes {
		hit, ok := p.Match(doc)
		if ok {
			hit.Probe = p.Name
			return hit, true
		}
	}
	return Hit{}, false
}

func usable(sel *goquery.Selection) bool {
	_, hidden := sel.Attr("hidden")
	_, disabled := sel.Attr("disabled")
	return !hidden && !disabled && sel.AttrOr("type", "") != "hidden"
}

// Selector matches the first usable element for a css selector.
func Selector(selector string) Probe {
	return Probe{
		Name: selector,
		Match: func(doc *goquery.Document) (Hit, bool) {
			found := doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
				return usable(s)
			}).First()
			if found.Length() == 0 {
				return Hit{}, false
			}
			// an id-less match among several elements needs a precise path
			target := selector
			if doc.Find(selector).Length() > 1 {
				target = htmlutil.CSSPath(found)
			}
			return Hit{
				Selector: target,
				Text:     htmlutil.Clean(found.Text()),
			}, true
		},
	}
}

// Selectors is a convenience for a list of css selector probes.
func Selectors(selectors ...string) []Probe {
	probes := make([]Probe, len(selectors))
	for i, s := range selectors {
		probes[i] = Selector(s)
	}
	return probes
}

var camelBoundary = regexp.MustCompile(`(\p{Ll})(\p{Lu})`)

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// hasWord reports whether word shows up in an attribute value as a whole
// token. camelCase and kebab-case names are split, so "prev" is found in
// "btn-prev" and "prevMonth" but not in "preview".
func hasWord(value, word string) bool {
	value = strings.ToLower(camelBoundary.ReplaceAllString(value, "$1 $2"))
	word = strings.ToLower(word)
	if word == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(word)
	last, _ := utf8.DecodeLastRuneInString(word)

	for offset := 0; offset < len(value); {
		i := strings.Index(value[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		before, _ := utf8.DecodeLastRuneInString(value[:start])
		after, _ := utf8.DecodeRuneInString(value[end:])
		leftOk := start == 0 || !isWordRune(first) || !isWordRune(before)
		rightOk := end == len(value) || !isWordRune(last) || !isWordRune(after)
		if leftOk && rightOk {
			return true
		}
		offset = start + 1
	}
	return false
}

// Attribute matches the first usable element whose attr carries one of
// the words as a whole token.
func Attribute(attr string, words ...string) Probe {
	return Probe{
		Name: attr + " " + strings.Join(words, "|"),
		Match: func(doc *goquery.Document) (Hit, bool) {
			var hit Hit
			found := false
			doc.Find("[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if !usable(s) {
					return true
				}
				value := s.AttrOr(attr, "")
				for _, word := range words {
					if hasWord(value, word) {
						hit = Hit{
							Selector: htmlutil.CSSPath(s),
							Text:     htmlutil.Clean(s.Text()),
						}
						found = true
						return false
					}
				}
				return true
			})
			return hit, found
		},
	}
}

// Fuzzy matches the first usable element in scope whose text contains
// one of the words (case-insensitive), or whose aria-label, title, class
// or data-test-id carries one as a whole token.
func Fuzzy(name, scope string, words []string, exclude []string) Probe {
	return Probe{
		Name: name,
		Match: func(doc *goquery.Document) (Hit, bool) {
			var hit Hit
			found := false
			doc.Find(scope).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if !usable(s) {
					return true
				}
				text := strings.ToLower(htmlutil.Clean(s.Text()))
				attrs := []string{
					s.AttrOr("aria-label", ""),
					s.AttrOr("title", ""),
					s.AttrOr("class", ""),
					s.AttrOr("data-test-id", ""),
				}
				contains := func(word string) bool {
					if strings.Contains(text, word) {
						return true
					}
					for _, attr := range attrs {
						if hasWord(attr, word) {
							return true
						}
					}
					return false
				}
				for _, word := range exclude {
					if contains(word) {
						return true
					}
				}
				for _, word := range words {
					if contains(word) {
						hit = Hit{
							Selector: htmlutil.CSSPath(s),
							Text:     htmlutil.Clean(s.Text()),
						}
						found = true
						return false
					}
				}
				return true
			})
			return hit, found
		},
	}
}

// TextPattern matches the first element in scope whose own text matches
// the pattern, innermost elements win.
func TextPattern(name, scope string, pattern *regexp.Regexp) Probe {
	return Probe{
		Name: name,
		Match: func(doc *goquery.Document) (Hit, bool) {
			var hit Hit
			found := false
			doc.Find(scope).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				text := htmlutil.Clean(s.Text())
				if !pattern.MatchString(text) {
					return true
				}
				hit = Hit{Selector: htmlutil.CSSPath(s), Text: text}
				found = true
				return false
			})
			return hit, found
		},
	}
}
