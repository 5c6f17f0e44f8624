package filter

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Engine evaluates normalized events against the configured admission
// rules. Evaluation is pure and does no I/O; configuration hot swap goes
// through an atomic pointer, so concurrent readers never block and the
// last writer wins.
type Engine struct {
	compiled atomic.Pointer[compiledConfig]
	logger   *log.Logger
}

type compiledConfig struct {
	cfg            Config
	targetBranches []branchMatcher
	sourceBranches []branchMatcher
	skipLabels     map[string]struct{}
	requireLabels  map[string]struct{}
	skipPaths      []pathMatcher
	requirePaths   []pathMatcher
	expressions    []compiledExpression
}

// NewEngine compiles cfg into an Engine. Compilation never fails: invalid
// regexes, globs, and expressions degrade per rule.
func NewEngine(cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	engine := &Engine{logger: logger}
	engine.compiled.Store(compile(cfg, logger))
	return engine
}

// Config returns the configuration currently in effect.
func (e *Engine) Config() Config {
	return e.compiled.Load().cfg
}

// UpdateConfig replaces the configuration. In-flight evaluations finish
// against the old config.
func (e *Engine) UpdateConfig(cfg Config) {
	e.compiled.Store(compile(cfg, e.logger))
}

func compile(cfg Config, logger *log.Logger) *compiledConfig {
	c := &compiledConfig{
		cfg:           cfg,
		skipLabels:    labelSet(cfg.SkipLabels),
		requireLabels: labelSet(cfg.RequireLabels),
	}
	for _, pattern := range cfg.SkipTargetBranches {
		c.targetBranches = append(c.targetBranches, newBranchMatcher(pattern))
	}
	for _, pattern := range cfg.SkipSourceBranches {
		c.sourceBranches = append(c.sourceBranches, newBranchMatcher(pattern))
	}
	for _, pattern := range cfg.SkipPaths {
		c.skipPaths = append(c.skipPaths, newPathMatcher(pattern))
	}
	for _, pattern := range cfg.RequirePaths {
		c.requirePaths = append(c.requirePaths, newPathMatcher(pattern))
	}
	for _, source := range cfg.SkipExpressions {
		expr, err := compileExpression(source)
		if err != nil {
			logger.Printf("skip expression %q does not compile, ignoring: %v", source, err)
			continue
		}
		c.expressions = append(c.expressions, expr)
	}
	return c
}

func labelSet(labels []string) map[string]struct{} {
	if len(labels) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		set[strings.ToLower(label)] = struct{}{}
	}
	return set
}

// Evaluate runs the rules in fixed precedence and short-circuits on the
// first match.
func (e *Engine) Evaluate(event Event) Decision {
	c := e.compiled.Load()

	// 1. Draft.
	if c.cfg.skipDrafts() && event.IsDraft {
		return skip("draft pull request")
	}

	// 2. Target branch.
	for _, m := range c.targetBranches {
		if m.matches(event.TargetBranch) {
			return skip(fmt.Sprintf("target branch %q matches %q", event.TargetBranch, m.pattern))
		}
	}

	// 3. Source branch.
	for _, m := range c.sourceBranches {
		if m.matches(event.SourceBranch) {
			return skip(fmt.Sprintf("source branch %q matches %q", event.SourceBranch, m.pattern))
		}
	}

	// 4. Skip labels.
	for _, label := range event.Labels {
		if _, ok := c.skipLabels[strings.ToLower(label)]; ok {
			return skip(fmt.Sprintf("label %q is a skip label", label))
		}
	}

	// 5. Require labels.
	if len(c.requireLabels) > 0 {
		found := false
		for _, label := range event.Labels {
			if _, ok := c.requireLabels[strings.ToLower(label)]; ok {
				found = true
				break
			}
		}
		if !found {
			return skip("no required label present")
		}
	}

	// 6. File-count threshold.
	if event.ChangedFileCount > c.cfg.maxFiles() {
		return skip(fmt.Sprintf("%d changed files exceeds threshold %d", event.ChangedFileCount, c.cfg.maxFiles()))
	}

	// 7. Skip paths: every changed path must match some skip glob.
	if len(c.skipPaths) > 0 && len(event.ChangedPaths) > 0 {
		all := true
		for _, path := range event.ChangedPaths {
			if !anyMatches(c.skipPaths, path) {
				all = false
				break
			}
		}
		if all {
			return skip("all changed paths match skip patterns")
		}
	}

	// 8. Require paths: at least one changed path must match.
	if len(c.requirePaths) > 0 {
		found := false
		for _, path := range event.ChangedPaths {
			if anyMatches(c.requirePaths, path) {
				found = true
				break
			}
		}
		if !found {
			return skip("no changed path matches a required pattern")
		}
	}

	// 9. Custom skip expressions over the raw payload.
	for _, expr := range c.expressions {
		matched, err := expr.evaluate(event)
		if err != nil {
			e.logger.Printf("skip expression %q failed to evaluate: %v", expr.source, err)
			continue
		}
		if matched {
			return skip(fmt.Sprintf("expression %q matched", expr.source))
		}
	}

	return process
}

func anyMatches(matchers []pathMatcher, path string) bool {
	for _, m := range matchers {
		if m.matches(path) {
			return true
		}
	}
	return false
}
