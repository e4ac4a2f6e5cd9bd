package parser

import (
	"strings"

	"mycelial/internal/compiler/ast"
)

// scanBody performs a lightweight lexical scan of an on-signal handler's
// raw body text, populating EmitFreqs (frequency names passed to emit(...)
// calls), StateRefs (state.field accesses), and PayloadRefs (accesses
// through the signal's bound variable). This is deliberately not a full
// expression parse: spec.md §4.8 scopes the compiler to a parse/lowering
// contract, so these lists exist to let sema check "every frequency
// referenced... is declared" and "state-field accesses refer to declared
// fields" without building a full statement/expression grammar.
func scanBody(sig *ast.OnSignal, binding string) {
	// The body text is reassembled by the parser as individual lexer
	// tokens joined with single spaces, so "state.value" arrives as the
	// three separate tokens "state" "." "value" rather than one word.
	tokens := strings.Fields(sig.Body)
	for i, tok := range tokens {
		switch {
		case tok == "emit":
			for j := i + 1; j < len(tokens); j++ {
				if tokens[j] == "(" {
					continue
				}
				if freq := trimIdent(tokens[j]); freq != "" {
					sig.EmitFreqs = append(sig.EmitFreqs, freq)
				}
				break
			}
		case tok == "state" && i+2 < len(tokens) && tokens[i+1] == ".":
			if field := trimIdent(tokens[i+2]); field != "" {
				sig.StateRefs = append(sig.StateRefs, field)
			}
		case binding != "" && tok == binding && i+2 < len(tokens) && tokens[i+1] == ".":
			if field := trimIdent(tokens[i+2]); field != "" {
				sig.PayloadRefs = append(sig.PayloadRefs, field)
			}
		}
	}
}

// trimIdent strips leading/trailing punctuation ("(", ")", ",", ".", ";",
// "{", "}") a raw
// token-joined scan can leave attached to an identifier.
func trimIdent(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		switch r {
		case '(', ')', ',', '.', ';', '{', '}':
			return true
		default:
			return false
		}
	})
}
