package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hookgate/pkg/filter"
	"hookgate/pkg/storage"
)

// TestFilterConfigRoundTrip tests that PUT swaps the live config and GET reflects it.
func TestFilterConfigRoundTrip(t *testing.T) {
	engine := filter.NewEngine(filter.Config{}, nil)
	handler := &FilterConfigHandler{Engine: engine}

	body := []byte(`{"skip_target_branches":["release/*"],"max_files_threshold":100}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/filter", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/filter", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got filter.Config
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if len(got.SkipTargetBranches) != 1 || got.SkipTargetBranches[0] != "release/*" {
		t.Fatalf("expected updated branches, got %+v", got)
	}
	if got.MaxFilesThreshold != 100 {
		t.Fatalf("expected threshold 100, got %d", got.MaxFilesThreshold)
	}

	decision := engine.Evaluate(filter.Event{TargetBranch: "release/1.2"})
	if !decision.Skip {
		t.Fatalf("expected swapped config to take effect")
	}
}

// TestFilterConfigRejectsUnknownFields tests that a config with unknown keys is refused.
func TestFilterConfigRejectsUnknownFields(t *testing.T) {
	handler := &FilterConfigHandler{Engine: filter.NewEngine(filter.Config{}, nil)}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/admin/filter", bytes.NewReader([]byte(`{"nope":true}`))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

type fakeStore struct {
	installations []storage.InstallationRecord
	repositories  []storage.RepositoryRecord
}

func (s *fakeStore) UpsertInstallation(ctx context.Context, record storage.InstallationRecord) error {
	s.installations = append(s.installations, record)
	return nil
}

func (s *fakeStore) GetInstallation(ctx context.Context, provider, installationID string) (*storage.InstallationRecord, error) {
	return nil, nil
}

func (s *fakeStore) ListInstallations(ctx context.Context, provider string) ([]storage.InstallationRecord, error) {
	return s.installations, nil
}

func (s *fakeStore) UpsertRepository(ctx context.Context, record storage.RepositoryRecord) error {
	s.repositories = append(s.repositories, record)
	return nil
}

func (s *fakeStore) RemoveRepository(ctx context.Context, provider, installationID, repoID string) error {
	return nil
}

func (s *fakeStore) ListRepositories(ctx context.Context, provider, installationID string) ([]storage.RepositoryRecord, error) {
	return s.repositories, nil
}

func (s *fakeStore) Close() error { return nil }

// TestInstallationsHandler tests listing installations and drilling into repositories.
func TestInstallationsHandler(t *testing.T) {
	store := &fakeStore{
		installations: []storage.InstallationRecord{{Provider: "github", InstallationID: "42"}},
		repositories:  []storage.RepositoryRecord{{Provider: "github", InstallationID: "42", RepoID: "1", FullName: "octo-org/api"}},
	}
	handler := &InstallationsHandler{Store: store, Repos: store}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/installations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var installs []storage.InstallationRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &installs); err != nil {
		t.Fatalf("decode installations: %v", err)
	}
	if len(installs) != 1 || installs[0].InstallationID != "42" {
		t.Fatalf("unexpected installations %+v", installs)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/installations?installation_id=42", nil))
	var repos []storage.RepositoryRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &repos); err != nil {
		t.Fatalf("decode repositories: %v", err)
	}
	if len(repos) != 1 || repos[0].FullName != "octo-org/api" {
		t.Fatalf("unexpected repositories %+v", repos)
	}
}
