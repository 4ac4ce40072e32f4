package api

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/proverops/buildboard/pkg/api/store"
)

//go:embed templates/builds.html
var templatesFS embed.FS

var buildsTemplate = template.Must(
	template.ParseFS(templatesFS, "templates/builds.html"),
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// buildRow is a build record decorated for display.
type buildRow struct {
	store.Build
	Username   string `json:"username"`
	ResultText string `json:"result_text"`
}

// toRows derives the display fields for each build.
func toRows(builds []store.Build) []buildRow {
	rows := make([]buildRow, 0, len(builds))

	for _, b := range builds {
		rows = append(rows, buildRow{
			Build:      b,
			Username:   usernameOf(b.Reponame),
			ResultText: resultText(b.Result),
		})
	}

	return rows
}

// usernameOf returns the owner prefix of an owner/repo name, or the
// empty string when there is no separator.
func usernameOf(reponame string) string {
	if idx := strings.Index(reponame, "/"); idx >= 0 {
		return reponame[:idx]
	}

	return ""
}

// resultText renders a result code for display.
func resultText(result int) string {
	switch result {
	case store.ResultSuccess:
		return "Success"
	case store.ResultFailure:
		return "Failure"
	default:
		return "Unknown"
	}
}

// buildsPage is the data handed to the listing template.
type buildsPage struct {
	Title string
	Rows  []buildRow
}

// renderBuilds writes the listing page for the given rows.
func (s *server) renderBuilds(
	w http.ResponseWriter, title string, builds []store.Build,
) {
	page := buildsPage{
		Title: title,
		Rows:  toRows(builds),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := buildsTemplate.Execute(w, page); err != nil {
		s.log.WithError(err).Error("Failed to render builds page")
	}
}

// --- Handlers ---

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLatest lists the most recent build per (repository, Isabelle
// version) pair.
func (s *server) handleLatest(w http.ResponseWriter, r *http.Request) {
	builds, err := s.store.ListLatest(r.Context(), store.Filter{})
	if err != nil {
		s.serveListError(w, err)

		return
	}

	s.renderBuilds(w, "Latest builds", builds)
}

// handleByVersion lists the most recent build per repository for one
// Isabelle version.
func (s *server) handleByVersion(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")

	builds, err := s.store.ListLatest(r.Context(), store.Filter{
		IsabelleVersion: version,
	})
	if err != nil {
		s.serveListError(w, err)

		return
	}

	s.renderBuilds(w,
		fmt.Sprintf("Latest builds for Isabelle %s", version), builds)
}

// handleRepo lists the full build history of a repository given as a
// single path segment.
func (s *server) handleRepo(w http.ResponseWriter, r *http.Request) {
	s.serveHistory(w, r, chi.URLParam(r, "repo"))
}

// handleOwnerRepo lists the full build history of an owner/repo pair.
func (s *server) handleOwnerRepo(w http.ResponseWriter, r *http.Request) {
	reponame := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "repo")
	s.serveHistory(w, r, reponame)
}

func (s *server) serveHistory(
	w http.ResponseWriter, r *http.Request, reponame string,
) {
	builds, err := s.store.ListHistory(r.Context(), reponame)
	if err != nil {
		s.serveListError(w, err)

		return
	}

	s.renderBuilds(w,
		fmt.Sprintf("Build history for %s", reponame), builds)
}

// handleUser lists the latest builds for every repository of one owner.
func (s *server) handleUser(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	builds, err := s.store.ListLatest(r.Context(), store.Filter{
		Owner: owner,
	})
	if err != nil {
		s.serveListError(w, err)

		return
	}

	s.renderBuilds(w,
		fmt.Sprintf("Latest builds for %s", owner), builds)
}

// handleUserAndVersion combines the owner and version filters.
func (s *server) handleUserAndVersion(
	w http.ResponseWriter, r *http.Request,
) {
	owner := chi.URLParam(r, "owner")
	version := chi.URLParam(r, "version")

	builds, err := s.store.ListLatest(r.Context(), store.Filter{
		Owner:           owner,
		IsabelleVersion: version,
	})
	if err != nil {
		s.serveListError(w, err)

		return
	}

	s.renderBuilds(w,
		fmt.Sprintf("Latest builds for %s on Isabelle %s", owner, version),
		builds)
}

// handleRawRecentData returns the same rows as the index page as JSON.
func (s *server) handleRawRecentData(
	w http.ResponseWriter, r *http.Request,
) {
	builds, err := s.store.ListLatest(r.Context(), store.Filter{})
	if err != nil {
		s.serveListError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, toRows(builds))
}

func (s *server) serveListError(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("Failed to query builds")
	writeJSON(w, http.StatusInternalServerError,
		errorResponse{"internal error"})
}
