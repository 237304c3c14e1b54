package application

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AzielCF/az-collab/collab/domain/identity"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Mention is an identity referenced with @name in a text body.
type Mention struct {
	IdentityID  string `json:"identityId"`
	DisplayName string `json:"displayName"`
}

type mentionCandidate struct {
	identity identity.Identity
	tokens   []string
	length   int
}

var folder = cases.Fold()

func foldToken(s string) string {
	return folder.String(norm.NFC.String(s))
}

// ExtractMentions returns the identities mentioned in text, once each, in
// order of first occurrence. At every "@" the longest known display name
// spelled by the following whitespace-delimited tokens wins. Unknown names
// are left alone. ExtractMentions has no side effects.
func ExtractMentions(text string, directory []identity.Identity) []Mention {
	candidates := buildCandidates(directory)
	if len(candidates) == 0 || !strings.Contains(text, "@") {
		return nil
	}

	var (
		out  []Mention
		seen = make(map[string]bool)
	)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != '@' || !mentionBoundary(text, i) || !nameFollows(text[i+size:]) {
			i += size
			continue
		}

		tokens := strings.Fields(text[i+size:])
		match := longestMatch(tokens, candidates)
		if match == nil {
			i += size
			continue
		}
		if !seen[match.identity.ID] {
			seen[match.identity.ID] = true
			out = append(out, Mention{IdentityID: match.identity.ID, DisplayName: match.identity.DisplayName})
		}
		i += size + fieldsSpan(text[i+size:], len(match.tokens))
	}
	return out
}

// buildCandidates orders names longest first so the greedy scan can take the
// first hit.
func buildCandidates(directory []identity.Identity) []mentionCandidate {
	out := make([]mentionCandidate, 0, len(directory))
	for _, ident := range directory {
		fields := strings.Fields(ident.DisplayName)
		if ident.ID == "" || len(fields) == 0 {
			continue
		}
		tokens := make([]string, len(fields))
		length := 0
		for i, f := range fields {
			tokens[i] = foldToken(f)
			length += utf8.RuneCountInString(tokens[i])
		}
		out = append(out, mentionCandidate{identity: ident, tokens: tokens, length: length})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i].tokens) != len(out[j].tokens) {
			return len(out[i].tokens) > len(out[j].tokens)
		}
		return out[i].length > out[j].length
	})
	return out
}

// longestMatch returns the first candidate whose tokens prefix the text
// tokens.
func longestMatch(tokens []string, candidates []mentionCandidate) *mentionCandidate {
	if len(tokens) == 0 {
		return nil
	}
	folded := make([]string, 0, len(tokens))
	for i := range candidates {
		c := &candidates[i]
		if len(c.tokens) > len(tokens) {
			continue
		}
		for len(folded) < len(c.tokens) {
			folded = append(folded, foldToken(tokens[len(folded)]))
		}
		if tokensMatch(folded[:len(c.tokens)], c.tokens) {
			return c
		}
	}
	return nil
}

// fieldsSpan returns the byte offset just past the n-th whitespace-delimited
// field of s.
func fieldsSpan(s string, n int) int {
	pos := 0
	for ; n > 0; n-- {
		for pos < len(s) {
			r, size := utf8.DecodeRuneInString(s[pos:])
			if !unicode.IsSpace(r) {
				break
			}
			pos += size
		}
		for pos < len(s) {
			r, size := utf8.DecodeRuneInString(s[pos:])
			if unicode.IsSpace(r) {
				break
			}
			pos += size
		}
	}
	return pos
}

var possessives = []string{"'s", "’s"}

// tokensMatch compares folded tokens. The last text token may carry a
// possessive and trailing punctuation after the name, as in "@Ana,",
// "@Ana's" or "@Sam Jr.!".
func tokensMatch(text, name []string) bool {
	last := len(name) - 1
	for i := range name {
		if text[i] == name[i] {
			continue
		}
		if i != last || !strings.HasPrefix(text[i], name[i]) {
			return false
		}
		rest := text[i][len(name[i]):]
		for _, p := range possessives {
			if cut, ok := strings.CutPrefix(rest, p); ok {
				rest = cut
				break
			}
		}
		if strings.TrimLeftFunc(rest, unicode.IsPunct) != "" {
			return false
		}
	}
	return true
}

// nameFollows reports whether a name starts right after the "@": "@ Ana" is
// not a mention.
func nameFollows(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return s != "" && !unicode.IsSpace(r)
}

// mentionBoundary rejects an "@" glued to a word, as in an e-mail address.
func mentionBoundary(text string, at int) bool {
	if at == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:at])
	return !unicode.IsLetter(prev) && !unicode.IsDigit(prev)
}

// MentionResolver resolves mentions against a live directory at submit time.
type MentionResolver struct {
	directory identity.Directory
}

func NewMentionResolver(directory identity.Directory) *MentionResolver {
	return &MentionResolver{directory: directory}
}

func (mr *MentionResolver) Resolve(text string) []Mention {
	if mr == nil || mr.directory == nil {
		return nil
	}
	return ExtractMentions(text, mr.directory.Identities())
}
