// Package tokenizer provides text tokenisation for the search index. It
// lower-cases input and splits on any scalar that is not a letter or digit;
// no stemming and no stop-word removal are applied.
package tokenizer

import "unicode"

// Token is a single normalised term and its zero-based ordinal among the
// terms emitted for one document (or query).
type Token struct {
	Term     string
	Position int
}

// Tokenize decodes text as a sequence of Unicode scalars, accumulates
// consecutive letters/digits into runs, and emits each run lower-cased as a
// Token once a non-alphanumeric scalar (or end of input) closes it. It is
// deterministic and used identically for document ingest and query parsing,
// so query terms match indexed terms by construction.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	runBuf := make([]rune, 0, 16)
	pos := 0

	flush := func() {
		if len(runBuf) == 0 {
			return
		}
		tokens = append(tokens, Token{
			Term:     string(runBuf),
			Position: pos,
		})
		pos++
		runBuf = runBuf[:0]
	}

	// Ranging over a string decodes UTF-8 and substitutes utf8.RuneError
	// for malformed sequences, which is itself non-alphanumeric and so
	// acts as a separator without aborting tokenization.
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			runBuf = append(runBuf, unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// Terms returns the distinct terms produced by Tokenize, in first-seen order.
func Terms(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t.Term]; ok {
			continue
		}
		seen[t.Term] = struct{}{}
		terms = append(terms, t.Term)
	}
	return terms
}
