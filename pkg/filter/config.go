package filter

// defaultMaxFilesThreshold bounds how many changed files an event may
// carry before it is skipped as too large to review.
const defaultMaxFilesThreshold = 500

// Config holds the admission rule parameters. A Config is immutable once
// handed to the engine; hot reload replaces it wholesale via UpdateConfig.
type Config struct {
	SkipDraftPRs       *bool    `yaml:"skip_draft_prs" json:"skip_draft_prs"`
	SkipTargetBranches []string `yaml:"skip_target_branches" json:"skip_target_branches"`
	SkipSourceBranches []string `yaml:"skip_source_branches" json:"skip_source_branches"`
	SkipLabels         []string `yaml:"skip_labels" json:"skip_labels"`
	RequireLabels      []string `yaml:"require_labels" json:"require_labels"`
	SkipPaths          []string `yaml:"skip_paths" json:"skip_paths"`
	RequirePaths       []string `yaml:"require_paths" json:"require_paths"`
	MaxFilesThreshold  int      `yaml:"max_files_threshold" json:"max_files_threshold"`

	// SkipExpressions are optional boolean expressions evaluated over the
	// raw payload after the built-in rules pass.
	SkipExpressions []string `yaml:"skip_expressions" json:"skip_expressions"`
}

func (c Config) skipDrafts() bool {
	if c.SkipDraftPRs == nil {
		return true
	}
	return *c.SkipDraftPRs
}

func (c Config) maxFiles() int {
	if c.MaxFilesThreshold <= 0 {
		return defaultMaxFilesThreshold
	}
	return c.MaxFilesThreshold
}

// Event is the normalized shape the engine evaluates. Raw carries the
// flattened payload and RawObject the parsed JSON tree; both feed only the
// expression rules.
type Event struct {
	IsDraft          bool
	SourceBranch     string
	TargetBranch     string
	Labels           []string
	ChangedFileCount int
	ChangedPaths     []string

	Raw       map[string]interface{}
	RawObject interface{}
}

// Decision is the admission outcome. Exactly the first matching rule in
// precedence order supplies the skip reason.
type Decision struct {
	Skip   bool
	Reason string
}

func skip(reason string) Decision {
	return Decision{Skip: true, Reason: reason}
}

var process = Decision{}
