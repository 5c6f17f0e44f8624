package ingest

import (
	"net/http"
	"testing"
	"time"

	"hookgate/pkg/verify"
)

func gitlabRequest(event string, body string) verify.Request {
	header := http.Header{}
	header.Set("X-Gitlab-Event", event)
	header.Set("Content-Type", "application/json")
	header.Set("X-Gitlab-Token", "tok")
	return verify.Request{
		Header:     header,
		Body:       []byte(body),
		ReceivedAt: time.Now(),
	}
}

// TestNormalizeGitLabMergeRequest tests that merge request attributes map onto filter fields.
func TestNormalizeGitLabMergeRequest(t *testing.T) {
	body := `{
		"object_kind": "merge_request",
		"object_attributes": {
			"source_branch": "feature/y",
			"target_branch": "main",
			"work_in_progress": true
		},
		"labels": [{"title": "backend"}, {"title": "urgent"}]
	}`
	norm := normalize("gitlab", gitlabRequest("Merge Request Hook", body))

	if norm.Malformed {
		t.Fatalf("expected well-formed payload")
	}
	if norm.Name != "Merge Request Hook" {
		t.Fatalf("unexpected event name %q", norm.Name)
	}
	if !norm.Event.IsDraft {
		t.Fatalf("expected work_in_progress to mark draft")
	}
	if norm.Event.SourceBranch != "feature/y" || norm.Event.TargetBranch != "main" {
		t.Fatalf("unexpected branches %q -> %q", norm.Event.SourceBranch, norm.Event.TargetBranch)
	}
	if len(norm.Event.Labels) != 2 || norm.Event.Labels[0] != "backend" {
		t.Fatalf("unexpected labels %v", norm.Event.Labels)
	}
}

// TestNormalizeGitHubPushPaths tests that push commits contribute changed paths.
func TestNormalizeGitHubPushPaths(t *testing.T) {
	body := `{
		"ref": "refs/heads/main",
		"commits": [
			{"added": ["docs/a.md"], "modified": ["src/main.go"], "removed": []},
			{"added": [], "modified": ["docs/b.md"], "removed": ["old.txt"]}
		]
	}`
	norm := normalize("github", githubRequest("push", body))

	if norm.Malformed {
		t.Fatalf("expected well-formed payload")
	}
	want := []string{"docs/a.md", "src/main.go", "docs/b.md", "old.txt"}
	if len(norm.Event.ChangedPaths) != len(want) {
		t.Fatalf("expected %d paths, got %v", len(want), norm.Event.ChangedPaths)
	}
	for i, path := range want {
		if norm.Event.ChangedPaths[i] != path {
			t.Fatalf("expected path %q at %d, got %q", path, i, norm.Event.ChangedPaths[i])
		}
	}
	if norm.Event.ChangedFileCount != len(want) {
		t.Fatalf("expected changed file count %d, got %d", len(want), norm.Event.ChangedFileCount)
	}
}

// TestNormalizeUnknownProviderFallsBack tests that unknown providers still flatten the payload.
func TestNormalizeUnknownProviderFallsBack(t *testing.T) {
	req := verify.Request{
		Header:     http.Header{},
		Body:       []byte(`{"type":"message_created","text":"hi"}`),
		ReceivedAt: time.Now(),
	}
	norm := normalize("gchat", req)
	if norm.Name != "message_created" {
		t.Fatalf("unexpected event name %q", norm.Name)
	}
	if norm.Raw["text"] != "hi" {
		t.Fatalf("expected flattened payload")
	}
}
