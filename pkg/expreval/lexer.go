package expreval

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokNumber
	tokString
	tokAssign // =
	tokPlus   // +
	tokMinus  // -
	tokLParen // (
	tokRParen // )
	tokComma  // ,
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits src into tokens. Statement separators (newlines and semicolons)
// are emitted as tokNewline; blank lines collapse.
func lex(src string) ([]token, error) {
	var toks []token
	runes := []rune(src)
	i := 0
	emit := func(k tokenKind, text string, pos int) {
		toks = append(toks, token{kind: k, text: text, pos: pos})
	}
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '\n' || r == ';':
			if len(toks) > 0 && toks[len(toks)-1].kind != tokNewline {
				emit(tokNewline, "", i)
			}
			i++
		case r == ' ' || r == '\t' || r == '\r':
			i++
		case r == '#':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '=':
			emit(tokAssign, "=", i)
			i++
		case r == '+':
			emit(tokPlus, "+", i)
			i++
		case r == '-':
			emit(tokMinus, "-", i)
			i++
		case r == '(':
			emit(tokLParen, "(", i)
			i++
		case r == ')':
			emit(tokRParen, ")", i)
			i++
		case r == ',':
			emit(tokComma, ",", i)
			i++
		case r == '"' || r == '\'':
			quote := r
			var b strings.Builder
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				if runes[j] == '\n' {
					return nil, fmt.Errorf("unterminated string at offset %d", i)
				}
				b.WriteRune(runes[j])
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			emit(tokString, b.String(), i)
			i = j + 1
		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}
			emit(tokNumber, string(runes[i:j]), i)
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			emit(tokIdent, string(runes[i:j]), i)
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		}
	}
	emit(tokEOF, "", len(runes))
	return toks, nil
}
