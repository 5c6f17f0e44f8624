package filter

import (
	"testing"
)

func boolPtr(v bool) *bool { return &v }

// TestDraftSkip tests the draft rule and its default.
func TestDraftSkip(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	decision := engine.Evaluate(Event{IsDraft: true})
	if !decision.Skip {
		t.Fatalf("expected draft to be skipped by default")
	}

	engine = NewEngine(Config{SkipDraftPRs: boolPtr(false)}, nil)
	decision = engine.Evaluate(Event{IsDraft: true})
	if decision.Skip {
		t.Fatalf("expected draft to pass when skip_draft_prs is false")
	}
}

// TestPrecedenceShortCircuit tests that an event that is both draft and
// missing a required label reports only the draft reason.
func TestPrecedenceShortCircuit(t *testing.T) {
	engine := NewEngine(Config{RequireLabels: []string{"reviewed"}}, nil)
	decision := engine.Evaluate(Event{IsDraft: true})
	if !decision.Skip {
		t.Fatalf("expected skip")
	}
	if decision.Reason != "draft pull request" {
		t.Fatalf("expected the draft reason, got %q", decision.Reason)
	}
}

// TestBranchRules tests target- and source-branch regex matching and the
// exact-match degradation for an invalid regex.
func TestBranchRules(t *testing.T) {
	engine := NewEngine(Config{
		SkipTargetBranches: []string{"^release/.*$"},
		SkipSourceBranches: []string{"dependabot/.*"},
	}, nil)

	if d := engine.Evaluate(Event{TargetBranch: "release/1.2"}); !d.Skip {
		t.Fatalf("expected release target branch to be skipped")
	}
	if d := engine.Evaluate(Event{SourceBranch: "dependabot/npm/x"}); !d.Skip {
		t.Fatalf("expected dependabot source branch to be skipped")
	}
	if d := engine.Evaluate(Event{TargetBranch: "main"}); d.Skip {
		t.Fatalf("expected main to process, got %q", d.Reason)
	}

	// `[invalid` is not a regex; it must degrade to exact comparison.
	engine = NewEngine(Config{SkipTargetBranches: []string{"[invalid"}}, nil)
	if d := engine.Evaluate(Event{TargetBranch: "[invalid"}); !d.Skip {
		t.Fatalf("expected exact match for unparseable pattern")
	}
	if d := engine.Evaluate(Event{TargetBranch: "invalid"}); d.Skip {
		t.Fatalf("expected non-exact branch to process")
	}
}

// TestLabelRules tests case-insensitive skip and require label sets.
func TestLabelRules(t *testing.T) {
	engine := NewEngine(Config{SkipLabels: []string{"WIP"}}, nil)
	if d := engine.Evaluate(Event{Labels: []string{"wip"}}); !d.Skip {
		t.Fatalf("expected wip label to be skipped case-insensitively")
	}

	engine = NewEngine(Config{RequireLabels: []string{"ready"}}, nil)
	if d := engine.Evaluate(Event{Labels: []string{"other"}}); !d.Skip {
		t.Fatalf("expected missing required label to skip")
	}
	if d := engine.Evaluate(Event{Labels: []string{"Ready"}}); d.Skip {
		t.Fatalf("expected required label to process, got %q", d.Reason)
	}
}

// TestFileCountThreshold tests the boundary: 501 files skips at the
// default threshold, 500 does not.
func TestFileCountThreshold(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	if d := engine.Evaluate(Event{ChangedFileCount: 501}); !d.Skip {
		t.Fatalf("expected 501 files to skip")
	}
	if d := engine.Evaluate(Event{ChangedFileCount: 500}); d.Skip {
		t.Fatalf("expected 500 files to process, got %q", d.Reason)
	}
}

// TestSkipPathsScenario tests the documented scenario: skip only when
// every changed path matches a skip pattern.
func TestSkipPathsScenario(t *testing.T) {
	engine := NewEngine(Config{SkipPaths: []string{"*.md", "docs/**"}}, nil)

	if d := engine.Evaluate(Event{ChangedPaths: []string{"README.md", "docs/guide.md"}}); !d.Skip {
		t.Fatalf("expected all-docs change to skip")
	}
	if d := engine.Evaluate(Event{ChangedPaths: []string{"README.md", "src/index.ts"}}); d.Skip {
		t.Fatalf("expected mixed change to process, got %q", d.Reason)
	}
	// Rule 7 only applies when paths are present.
	if d := engine.Evaluate(Event{}); d.Skip {
		t.Fatalf("expected event without paths to process, got %q", d.Reason)
	}
}

// TestRequirePaths tests that a configured require set skips events that
// touch none of the required paths.
func TestRequirePaths(t *testing.T) {
	engine := NewEngine(Config{RequirePaths: []string{"src/**"}}, nil)
	if d := engine.Evaluate(Event{ChangedPaths: []string{"docs/a.md"}}); !d.Skip {
		t.Fatalf("expected non-src change to skip")
	}
	if d := engine.Evaluate(Event{ChangedPaths: []string{"src/main.go"}}); d.Skip {
		t.Fatalf("expected src change to process, got %q", d.Reason)
	}
}

// TestGlobSemantics tests the documented glob behavior.
func TestGlobSemantics(t *testing.T) {
	cases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"docs/**", "docs/a/b.md", true},
		{"docs/**", "docs/x.md", true},
		{"docs/**", "src/docs/x.md", false},
		{"*.md", "readme.md", true},
		{"*.md", "readme.md.bak", false},
		{"*.md", "docs/readme.md", false},
		{"**/test.go", "a/b/test.go", true},
		{"**/test.go", "test.go", true},
		{"a/**/b", "a/b", true},
		{"a/**/b", "a/x/y/b", true},
		{"a/**/b", "a/xb", false},
	}
	for _, c := range cases {
		m := newPathMatcher(c.pattern)
		if got := m.matches(c.path); got != c.want {
			t.Fatalf("pattern %q path %q: expected %v, got %v", c.pattern, c.path, c.want, got)
		}
	}
}

// TestConfigHotSwap tests that UpdateConfig replaces rules for subsequent
// evaluations.
func TestConfigHotSwap(t *testing.T) {
	engine := NewEngine(Config{}, nil)
	if d := engine.Evaluate(Event{Labels: []string{"wip"}}); d.Skip {
		t.Fatalf("expected process before swap")
	}
	engine.UpdateConfig(Config{SkipLabels: []string{"wip"}})
	if d := engine.Evaluate(Event{Labels: []string{"wip"}}); !d.Skip {
		t.Fatalf("expected skip after swap")
	}
	if got := engine.Config().SkipLabels; len(got) != 1 || got[0] != "wip" {
		t.Fatalf("expected Config to reflect the swap, got %v", got)
	}
}
