package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"hookgate/internal"
	"hookgate/pkg/filter"
	"hookgate/pkg/verify"

	"github.com/go-playground/webhooks/v6/github"
	"github.com/go-playground/webhooks/v6/gitlab"
)

// normalized is the provider-neutral view of a webhook request handed to
// the admission filter.
type normalized struct {
	Name      string
	Ping      bool
	Malformed bool
	Event     filter.Event
	Raw       map[string]interface{}
	RawObject interface{}
}

var githubEvents = []github.Event{
	github.CheckRunEvent,
	github.CheckSuiteEvent,
	github.CreateEvent,
	github.DeleteEvent,
	github.InstallationEvent,
	github.InstallationRepositoriesEvent,
	github.IssueCommentEvent,
	github.IssuesEvent,
	github.LabelEvent,
	github.PingEvent,
	github.PullRequestEvent,
	github.PullRequestReviewEvent,
	github.PullRequestReviewCommentEvent,
	github.PushEvent,
	github.ReleaseEvent,
	github.RepositoryEvent,
	github.StatusEvent,
	github.WorkflowDispatchEvent,
	github.WorkflowJobEvent,
	github.WorkflowRunEvent,
}

var gitlabEvents = []gitlab.Event{
	gitlab.PushEvents,
	gitlab.TagEvents,
	gitlab.IssuesEvents,
	gitlab.CommentEvents,
	gitlab.MergeRequestEvents,
	gitlab.WikiPageEvents,
	gitlab.PipelineEvents,
	gitlab.BuildEvents,
	gitlab.JobEvents,
	gitlab.DeploymentEvents,
}

var (
	githubHook, _ = github.New()
	gitlabHook, _ = gitlab.New()
)

// normalize extracts the event name and filter fields from a verified
// request. Extraction never fails: a payload that cannot be decoded
// yields an event with empty fields, and the filter treats absent fields
// as non-matching.
func normalize(provider string, req verify.Request) normalized {
	rawObject, flat := rawObjectAndFlatten(req.Body)
	out := normalized{
		Name:      eventName(provider, req, flat),
		Raw:       flat,
		RawObject: rawObject,
	}
	payload, parseErr := typedPayload(provider, req)
	out.Malformed = parseErr != nil
	out.Ping = isPing(provider, payload, out.Name)

	root, _ := rawObject.(map[string]interface{})
	switch provider {
	case "github":
		fillGitHubEvent(&out.Event, root, flat)
	case "gitlab":
		fillGitLabEvent(&out.Event, root, flat)
	}
	out.Event.Raw = flat
	out.Event.RawObject = rawObject
	return out
}

func rawObjectAndFlatten(raw []byte) (interface{}, map[string]interface{}) {
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, map[string]interface{}{}
	}
	objectMap, ok := out.(map[string]interface{})
	if !ok {
		return out, map[string]interface{}{}
	}
	return out, internal.Flatten(objectMap)
}

func eventName(provider string, req verify.Request, flat map[string]interface{}) string {
	switch provider {
	case "github":
		return req.Header.Get("X-GitHub-Event")
	case "gitlab":
		return req.Header.Get("X-Gitlab-Event")
	case "bitbucket":
		return req.Header.Get("X-Event-Key")
	case "slack":
		if name := asString(flat["event.type"]); name != "" {
			return name
		}
		return asString(flat["type"])
	case "discord", "gchat":
		if name := asString(flat["type"]); name != "" {
			return name
		}
		return asString(flat["t"])
	default:
		return asString(flat["type"])
	}
}

// typedPayload replays the captured request through the go-playground
// parser for the provider, so malformed payloads for known events are
// caught here rather than downstream. Events outside the parser's
// vocabulary are not errors.
func typedPayload(provider string, req verify.Request) (interface{}, error) {
	var parse func(*http.Request) (interface{}, error)
	switch provider {
	case "github":
		parse = func(r *http.Request) (interface{}, error) {
			return githubHook.Parse(r, githubEvents...)
		}
	case "gitlab":
		parse = func(r *http.Request) (interface{}, error) {
			return gitlabHook.Parse(r, gitlabEvents...)
		}
	default:
		return nil, nil
	}

	r := &http.Request{
		Method: http.MethodPost,
		Header: req.Header,
		Body:   io.NopCloser(bytes.NewReader(req.Body)),
	}
	payload, err := parse(r)
	if err != nil {
		if errors.Is(err, github.ErrEventNotFound) || errors.Is(err, gitlab.ErrEventNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return payload, nil
}

// isPing reports whether the request is a provider handshake that should
// be acknowledged without admission or publishing.
func isPing(provider string, payload interface{}, name string) bool {
	switch provider {
	case "github":
		_, ok := payload.(github.PingPayload)
		return ok
	case "slack":
		return name == "url_verification"
	case "discord":
		// Interaction type 1 is a verification ping.
		return name == "1"
	default:
		return false
	}
}

func fillGitHubEvent(event *filter.Event, root map[string]interface{}, flat map[string]interface{}) {
	event.IsDraft = asBool(flat["pull_request.draft"])
	event.SourceBranch = asString(flat["pull_request.head.ref"])
	event.TargetBranch = asString(flat["pull_request.base.ref"])
	event.ChangedFileCount = asInt(flat["pull_request.changed_files"])

	pr := asMap(root["pull_request"])
	for _, label := range asSlice(pr["labels"]) {
		if name := asString(asMap(label)["name"]); name != "" {
			event.Labels = append(event.Labels, name)
		}
	}

	// Push payloads carry the touched paths directly.
	for _, commit := range asSlice(root["commits"]) {
		commitMap := asMap(commit)
		for _, key := range []string{"added", "modified", "removed"} {
			for _, path := range asSlice(commitMap[key]) {
				if p := asString(path); p != "" {
					event.ChangedPaths = append(event.ChangedPaths, p)
				}
			}
		}
	}
	if len(event.ChangedPaths) > 0 && event.ChangedFileCount == 0 {
		event.ChangedFileCount = len(event.ChangedPaths)
	}
}

func fillGitLabEvent(event *filter.Event, root map[string]interface{}, flat map[string]interface{}) {
	attrs := asMap(root["object_attributes"])
	event.IsDraft = asBool(attrs["draft"]) || asBool(attrs["work_in_progress"])
	event.SourceBranch = asString(attrs["source_branch"])
	event.TargetBranch = asString(attrs["target_branch"])

	for _, label := range asSlice(root["labels"]) {
		if title := asString(asMap(label)["title"]); title != "" {
			event.Labels = append(event.Labels, title)
		}
	}

	for _, commit := range asSlice(root["commits"]) {
		commitMap := asMap(commit)
		for _, key := range []string{"added", "modified", "removed"} {
			for _, path := range asSlice(commitMap[key]) {
				if p := asString(path); p != "" {
					event.ChangedPaths = append(event.ChangedPaths, p)
				}
			}
		}
	}
	if len(event.ChangedPaths) > 0 {
		event.ChangedFileCount = len(event.ChangedPaths)
	}
}

func asMap(value interface{}) map[string]interface{} {
	out, _ := value.(map[string]interface{})
	return out
}

func asSlice(value interface{}) []interface{} {
	out, _ := value.([]interface{})
	return out
}

func asString(value interface{}) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

func asBool(value interface{}) bool {
	out, _ := value.(bool)
	return out
}

func asInt(value interface{}) int {
	switch typed := value.(type) {
	case float64:
		return int(typed)
	case int:
		return typed
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(typed))
		return n
	default:
		return 0
	}
}
