// Package queryengine compiles structured query definitions into provider
// query strings and per-article predicates, and sanitizes execution configs.
package queryengine

import (
	"net/url"
	"sort"
	"strings"
	"unicode"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
)

// Compile projects a definition onto the text sent as the provider query
// parameter: include terms joined by spaces, alternatives parenthesized and
// OR-joined, excluded terms prefixed with "-". Provider-specific quoting is
// the adapter's responsibility.
func Compile(def domain.QueryDefinition) domain.CompiledQuery {
	var parts []string
	for _, t := range def.Include {
		if v := strings.TrimSpace(t.Value); v != "" {
			parts = append(parts, v)
		}
	}
	var alts []string
	for _, t := range def.Any {
		if v := strings.TrimSpace(t.Value); v != "" {
			alts = append(alts, v)
		}
	}
	if len(alts) > 0 {
		parts = append(parts, "("+strings.Join(alts, " OR ")+")")
	}
	for _, t := range def.Exclude {
		if v := strings.TrimSpace(t.Value); v != "" {
			parts = append(parts, "-"+v)
		}
	}
	return domain.CompiledQuery{Query: strings.Join(parts, " ")}
}

// ArticleFields are the normalized-article fields the predicate inspects.
type ArticleFields struct {
	Provider     string
	Title        string
	Summary      string
	Content      string
	CanonicalURL string
}

// Matches evaluates the definition against one article: every include term
// must match, no exclude term may match, and when alternatives exist at
// least one must match.
func Matches(def domain.QueryDefinition, a ArticleFields) bool {
	haystack := buildHaystack(a)

	for _, t := range def.Include {
		if !termMatches(t, haystack) {
			return false
		}
	}
	for _, t := range def.Exclude {
		if termMatches(t, haystack) {
			return false
		}
	}
	if len(def.Any) == 0 {
		return true
	}
	for _, t := range def.Any {
		if termMatches(t, haystack) {
			return true
		}
	}
	return false
}

func buildHaystack(a ArticleFields) string {
	host := ""
	if u, err := url.Parse(a.CanonicalURL); err == nil {
		host = u.Hostname()
	}
	return strings.ToLower(strings.Join([]string{a.Provider, a.Title, a.Summary, a.Content, host}, " "))
}

// termMatches applies phrase (substring) or literal (whole-word,
// case-insensitive) semantics.
func termMatches(t domain.QueryTerm, haystack string) bool {
	needle := strings.ToLower(strings.TrimSpace(t.Value))
	if needle == "" {
		return false
	}
	if t.IsPhrase {
		return strings.Contains(haystack, needle)
	}
	return containsWord(haystack, needle)
}

func containsWord(haystack, word string) bool {
	start := 0
	for {
		idx := strings.Index(haystack[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		beforeOK := idx == 0 || !isWordRune(rune(haystack[idx-1]))
		afterOK := end >= len(haystack) || !isWordRune(rune(haystack[end]))
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

const maxListEntries = 50

// SanitizeExecution coerces the execution config to six clean lists:
// trimmed, lower-cased, deduplicated, and capped at 50 entries each.
func SanitizeExecution(exec domain.ExecutionConfig) domain.ExecutionConfig {
	return domain.ExecutionConfig{
		ProvidersAllow: sanitizeList(exec.ProvidersAllow),
		ProvidersDeny:  sanitizeList(exec.ProvidersDeny),
		DomainsAllow:   sanitizeList(exec.DomainsAllow),
		DomainsDeny:    sanitizeList(exec.DomainsDeny),
		CountriesAllow: sanitizeList(exec.CountriesAllow),
		CountriesDeny:  sanitizeList(exec.CountriesDeny),
	}
}

func sanitizeList(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == maxListEntries {
			break
		}
	}
	return out
}

// SelectProviders picks adapters for a query: denied providers drop out,
// then a non-empty allow list intersects the remainder. An empty result
// means the query is skipped.
func SelectProviders(available []string, exec domain.ExecutionConfig) []string {
	deny := toSet(exec.ProvidersDeny)
	allow := toSet(exec.ProvidersAllow)

	var out []string
	for _, p := range available {
		key := strings.ToLower(p)
		if _, denied := deny[key]; denied {
			continue
		}
		if len(allow) > 0 {
			if _, ok := allow[key]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func toSet(in []string) map[string]struct{} {
	s := make(map[string]struct{}, len(in))
	for _, v := range in {
		s[strings.ToLower(v)] = struct{}{}
	}
	return s
}
