package ingest

import (
	"context"
	"encoding/json"
	"log"

	"hookgate/internal"
	"hookgate/pkg/filter"
	"hookgate/pkg/storage"
	"hookgate/pkg/verify"
)

// Status classifies the terminal state of one webhook request.
type Status int

const (
	StatusAccepted Status = iota
	StatusRejected
	StatusSkipped
	StatusMalformed
)

// Outcome is the result of running a request through the pipeline.
type Outcome struct {
	Status Status
	Reason string
	Event  *internal.Event
}

// Orchestrator runs verification, normalization, admission filtering,
// and publishing for a single integration.
type Orchestrator struct {
	name      string
	provider  string
	scheme    verify.Scheme
	material  verify.Material
	topic     string
	drivers   []string
	filter    *filter.Engine
	publisher internal.Publisher
	installs  storage.InstallationStore
	repos     storage.RepositoryStore
	logger    *log.Logger
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithStores attaches installation bookkeeping stores. Either may be nil.
func WithStores(installs storage.InstallationStore, repos storage.RepositoryStore) Option {
	return func(o *Orchestrator) {
		o.installs = installs
		o.repos = repos
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New builds an orchestrator for one configured integration.
func New(name string, cfg internal.IntegrationConfig, engine *filter.Engine, publisher internal.Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		name:      name,
		provider:  cfg.Provider,
		scheme:    verify.Scheme(cfg.Scheme),
		material:  cfg.Material(),
		topic:     cfg.Topic,
		drivers:   cfg.Drivers,
		filter:    engine,
		publisher: publisher,
		logger:    internal.NewLogger("ingest"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle runs one request through the pipeline. The returned error is
// reserved for configuration and publishing faults; a request that fails
// verification or admission yields a non-accepted Outcome with a nil
// error.
func (o *Orchestrator) Handle(ctx context.Context, req verify.Request) (Outcome, error) {
	internal.IncRequest(o.name)

	result, err := verify.Verify(o.scheme, o.material, req)
	if err != nil {
		return Outcome{}, err
	}
	if !result.Valid {
		internal.IncVerifyFailure(o.name)
		o.logger.Printf("rejected integration=%s reason=%q", o.name, result.Reason)
		return Outcome{Status: StatusRejected, Reason: result.Reason}, nil
	}

	norm := normalize(o.provider, req)
	if norm.Malformed {
		o.logger.Printf("malformed payload integration=%s event=%s", o.name, norm.Name)
		return Outcome{Status: StatusMalformed, Reason: "malformed payload"}, nil
	}
	if norm.Ping {
		return Outcome{Status: StatusSkipped, Reason: "ping"}, nil
	}

	o.recordInstallation(ctx, norm)

	decision := o.filter.Evaluate(norm.Event)
	if decision.Skip {
		internal.IncSkip(o.name)
		o.logger.Printf("skipped integration=%s event=%s reason=%q", o.name, norm.Name, decision.Reason)
		return Outcome{Status: StatusSkipped, Reason: decision.Reason}, nil
	}

	event := internal.Event{
		Integration: o.name,
		Provider:    o.provider,
		Name:        norm.Name,
		RequestID:   req.Header.Get("X-Request-Id"),
		Data:        norm.Raw,
		RawPayload:  req.Body,
		RawObject:   norm.RawObject,
	}
	if err := o.publisher.PublishForDrivers(ctx, o.topic, event, o.drivers); err != nil {
		o.logger.Printf("publish integration=%s topic=%s failed: %v", o.name, o.topic, err)
		return Outcome{Status: StatusAccepted, Event: &event}, err
	}

	internal.IncAccept(o.name)
	o.logger.Printf("accepted integration=%s event=%s topic=%s", o.name, norm.Name, o.topic)
	return Outcome{Status: StatusAccepted, Event: &event}, nil
}

// recordInstallation keeps installation and repository bookkeeping in
// sync with app lifecycle events. Failures are logged, never surfaced:
// bookkeeping must not block delivery.
func (o *Orchestrator) recordInstallation(ctx context.Context, norm normalized) {
	if o.installs == nil || o.provider != "github" {
		return
	}
	root := asMap(norm.RawObject)
	installation := asMap(root["installation"])
	if installation == nil {
		return
	}
	installationID := asString(installation["id"])
	if installationID == "" {
		return
	}

	switch norm.Name {
	case "installation":
		account := asMap(installation["account"])
		metadata, _ := json.Marshal(installation)
		record := storage.InstallationRecord{
			Provider:       o.provider,
			AccountID:      asString(account["id"]),
			AccountName:    asString(account["login"]),
			InstallationID: installationID,
			Status:         asString(root["action"]),
			MetadataJSON:   string(metadata),
		}
		if err := o.installs.UpsertInstallation(ctx, record); err != nil {
			o.logger.Printf("installation upsert failed: %v", err)
		}
		o.syncRepositories(ctx, installationID, asSlice(root["repositories"]), nil)
	case "installation_repositories":
		o.syncRepositories(ctx, installationID,
			asSlice(root["repositories_added"]),
			asSlice(root["repositories_removed"]))
	}
}

func (o *Orchestrator) syncRepositories(ctx context.Context, installationID string, added, removed []interface{}) {
	if o.repos == nil {
		return
	}
	for _, item := range added {
		repo := asMap(item)
		record := storage.RepositoryRecord{
			Provider:       o.provider,
			InstallationID: installationID,
			RepoID:         asString(repo["id"]),
			Name:           asString(repo["name"]),
			FullName:       asString(repo["full_name"]),
			Private:        asBool(repo["private"]),
		}
		if owner, name, ok := splitFullName(record.FullName); ok {
			record.Owner = owner
			if record.Name == "" {
				record.Name = name
			}
		}
		if record.RepoID == "" {
			continue
		}
		if err := o.repos.UpsertRepository(ctx, record); err != nil {
			o.logger.Printf("repository upsert failed: %v", err)
		}
	}
	for _, item := range removed {
		repo := asMap(item)
		repoID := asString(repo["id"])
		if repoID == "" {
			continue
		}
		if err := o.repos.RemoveRepository(ctx, o.provider, installationID, repoID); err != nil {
			o.logger.Printf("repository remove failed: %v", err)
		}
	}
}

func splitFullName(fullName string) (owner, name string, ok bool) {
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == '/' {
			return fullName[:i], fullName[i+1:], true
		}
	}
	return "", "", false
}
