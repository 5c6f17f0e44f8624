package filter

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Knetic/govaluate"
	"github.com/PaesslerAG/jsonpath"
)

// compiledExpression is one govaluate skip expression. Parameters resolve
// against the flattened payload; `$.`-prefixed references run as JSONPath
// queries over the parsed payload tree.
type compiledExpression struct {
	source string
	expr   *govaluate.EvaluableExpression
}

func compileExpression(source string) (compiledExpression, error) {
	expr, err := govaluate.NewEvaluableExpression(rewriteExpression(source))
	if err != nil {
		return compiledExpression{}, err
	}
	return compiledExpression{source: source, expr: expr}, nil
}

func (c compiledExpression) evaluate(event Event) (bool, error) {
	result, err := c.expr.Eval(payloadParameters{event: event})
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression result is %T, not bool", result)
	}
	return matched, nil
}

type payloadParameters struct {
	event Event
}

func (p payloadParameters) Get(name string) (interface{}, error) {
	if strings.HasPrefix(name, "$.") {
		value, err := jsonpath.Get(name, p.event.RawObject)
		if err != nil {
			return nil, err
		}
		return value, nil
	}
	if value, ok := p.event.Raw[name]; ok {
		return value, nil
	}
	return nil, fmt.Errorf("unknown field %q", name)
}

// rewriteExpression wraps dotted field references and JSONPath queries in
// govaluate's bracket syntax so they parse as single parameters:
// `pull_request.draft == true` becomes `[pull_request.draft] == true`.
// String literals pass through untouched.
func rewriteExpression(source string) string {
	var b strings.Builder
	runes := []rune(source)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'' || r == '"':
			// Copy the quoted literal verbatim.
			quote := r
			b.WriteRune(r)
			i++
			for i < len(runes) {
				b.WriteRune(runes[i])
				if runes[i] == quote && runes[i-1] != '\\' {
					i++
					break
				}
				i++
			}
		case r == '[':
			// Already-bracketed parameter.
			for i < len(runes) {
				b.WriteRune(runes[i])
				if runes[i] == ']' {
					i++
					break
				}
				i++
			}
		case r == '$' || unicode.IsLetter(r) || r == '_':
			start := i
			i = consumeFieldToken(runes, i)
			token := string(runes[start:i])
			if needsBrackets(token) {
				b.WriteString("[" + token + "]")
			} else {
				b.WriteString(token)
			}
		default:
			b.WriteRune(r)
			i++
		}
	}
	return b.String()
}

// consumeFieldToken advances past an identifier path: letters, digits,
// underscores, dots, and numeric index brackets like labels[0].
func consumeFieldToken(runes []rune, i int) int {
	for i < len(runes) {
		r := runes[i]
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '$' {
			i++
			continue
		}
		if r == '[' {
			j := i + 1
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}
			if j < len(runes) && runes[j] == ']' && j > i+1 {
				i = j + 1
				continue
			}
		}
		break
	}
	// Trailing dots belong to the surrounding expression, not the path.
	for i > 0 && runes[i-1] == '.' {
		i--
	}
	return i
}

func needsBrackets(token string) bool {
	if strings.HasPrefix(token, "$.") {
		return true
	}
	if !strings.ContainsAny(token, ".[") {
		return false
	}
	switch token {
	case "true", "false":
		return false
	}
	return true
}
