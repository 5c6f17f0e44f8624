package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"hookgate/pkg/filter"
	"hookgate/pkg/storage"
)

// FilterConfigHandler exposes the live admission configuration. GET
// returns the active config; PUT swaps it atomically for in-flight and
// future requests.
type FilterConfigHandler struct {
	Engine *filter.Engine
	Logger *log.Logger
}

func (h *FilterConfigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		http.Error(w, "filter engine not configured", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, h.Engine.Config())
	case http.MethodPut:
		var cfg filter.Config
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			http.Error(w, "invalid filter config: "+err.Error(), http.StatusBadRequest)
			return
		}
		h.Engine.UpdateConfig(cfg)
		if h.Logger != nil {
			h.Logger.Printf("filter config updated")
		}
		writeJSON(w, h.Engine.Config())
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// InstallationsHandler lists installation bookkeeping. With an
// installation_id query it lists that installation's repositories
// instead.
type InstallationsHandler struct {
	Store  storage.InstallationStore
	Repos  storage.RepositoryStore
	Logger *log.Logger
}

func (h *InstallationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Store == nil {
		http.Error(w, "storage not configured", http.StatusServiceUnavailable)
		return
	}
	provider := strings.TrimSpace(r.URL.Query().Get("provider"))
	installationID := strings.TrimSpace(r.URL.Query().Get("installation_id"))

	if installationID != "" {
		if h.Repos == nil {
			http.Error(w, "repository storage not configured", http.StatusServiceUnavailable)
			return
		}
		if provider == "" {
			provider = "github"
		}
		records, err := h.Repos.ListRepositories(r.Context(), provider, installationID)
		if err != nil {
			http.Error(w, "list repositories failed", http.StatusInternalServerError)
			if h.Logger != nil {
				h.Logger.Printf("list repositories failed: %v", err)
			}
			return
		}
		writeJSON(w, records)
		return
	}

	records, err := h.Store.ListInstallations(r.Context(), provider)
	if err != nil {
		http.Error(w, "list installations failed", http.StatusInternalServerError)
		if h.Logger != nil {
			h.Logger.Printf("list installations failed: %v", err)
		}
		return
	}
	writeJSON(w, records)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
