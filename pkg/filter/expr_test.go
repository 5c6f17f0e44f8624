package filter

import (
	"encoding/json"
	"testing"
)

func exprEvent(t *testing.T, payload string) Event {
	t.Helper()
	var object interface{}
	if err := json.Unmarshal([]byte(payload), &object); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	raw := map[string]interface{}{}
	if m, ok := object.(map[string]interface{}); ok {
		raw = flattenMap(m)
	}
	return Event{Raw: raw, RawObject: object}
}

// flattenMap mirrors the ingest-side flattening for tests.
func flattenMap(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	var walk func(prefix string, value interface{})
	walk = func(prefix string, value interface{}) {
		switch typed := value.(type) {
		case map[string]interface{}:
			for key, child := range typed {
				next := key
				if prefix != "" {
					next = prefix + "." + key
				}
				walk(next, child)
			}
		default:
			out[prefix] = value
		}
	}
	walk("", data)
	return out
}

// TestSkipExpressionFlattened tests a dotted-field expression against the
// flattened payload.
func TestSkipExpressionFlattened(t *testing.T) {
	engine := NewEngine(Config{
		SkipExpressions: []string{`pull_request.user.login == "renovate[bot]"`},
	}, nil)

	event := exprEvent(t, `{"pull_request":{"user":{"login":"renovate[bot]"}}}`)
	if d := engine.Evaluate(event); !d.Skip {
		t.Fatalf("expected bot author to be skipped")
	}

	event = exprEvent(t, `{"pull_request":{"user":{"login":"human"}}}`)
	if d := engine.Evaluate(event); d.Skip {
		t.Fatalf("expected human author to process, got %q", d.Reason)
	}
}

// TestSkipExpressionJSONPath tests `$.`-style references.
func TestSkipExpressionJSONPath(t *testing.T) {
	engine := NewEngine(Config{
		SkipExpressions: []string{`$.action == "closed"`},
	}, nil)

	if d := engine.Evaluate(exprEvent(t, `{"action":"closed"}`)); !d.Skip {
		t.Fatalf("expected closed action to be skipped")
	}
	if d := engine.Evaluate(exprEvent(t, `{"action":"opened"}`)); d.Skip {
		t.Fatalf("expected opened action to process, got %q", d.Reason)
	}
}

// TestSkipExpressionRunsLast tests that expressions only fire after the
// built-in rules pass.
func TestSkipExpressionRunsLast(t *testing.T) {
	engine := NewEngine(Config{
		SkipExpressions: []string{`action == "opened"`},
	}, nil)

	event := exprEvent(t, `{"action":"opened"}`)
	event.IsDraft = true
	d := engine.Evaluate(event)
	if !d.Skip || d.Reason != "draft pull request" {
		t.Fatalf("expected the draft rule to win, got %q", d.Reason)
	}
}

// TestSkipExpressionDegradation tests that unparseable and failing
// expressions are ignored rather than failing the evaluation.
func TestSkipExpressionDegradation(t *testing.T) {
	engine := NewEngine(Config{
		SkipExpressions: []string{`((broken`, `missing_field == true`},
	}, nil)

	if d := engine.Evaluate(exprEvent(t, `{"action":"opened"}`)); d.Skip {
		t.Fatalf("expected degraded expressions to process, got %q", d.Reason)
	}
}
