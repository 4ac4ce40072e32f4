package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/proverops/buildboard/pkg/api/store"
)

// submission is the authenticated payload of a build report. Pointer
// fields distinguish absent/null from zero values; beyond presence, the
// values are accepted as-is.
type submission struct {
	Reponame *string `json:"reponame"`
	Datetime *string `json:"datetime"`
	Result   *int    `json:"result"`
	Config   *string `json:"config"`
}

// missingFields returns the names of required fields that are absent.
func (sub *submission) missingFields() []string {
	var missing []string

	if sub.Reponame == nil {
		missing = append(missing, "reponame")
	}

	if sub.Datetime == nil {
		missing = append(missing, "datetime")
	}

	if sub.Result == nil {
		missing = append(missing, "result")
	}

	if sub.Config == nil {
		missing = append(missing, "config")
	}

	return missing
}

// handleSubmitJobLog ingests a signed build report. The endpoint speaks
// plain text: CI jobs submit via a minimal form-encoded POST and only
// inspect the status code.
func (s *server) handleSubmitJobLog(w http.ResponseWriter, r *http.Request) {
	secret := []byte(s.cfg.Auth.Secret)
	if len(secret) == 0 {
		writeText(w, http.StatusForbidden, errSubmissionsDisabled.Error())

		return
	}

	if err := r.ParseForm(); err != nil {
		writeText(w, http.StatusBadRequest, "malformed form body")

		return
	}

	payload := r.PostFormValue("payload")
	if payload == "" {
		writeText(w, http.StatusForbidden, errMissingPayload.Error())

		return
	}

	providedHex := r.PostFormValue("hmac")

	if err := verifySignature(secret, []byte(payload), providedHex); err != nil {
		writeText(w, http.StatusForbidden, err.Error())

		return
	}

	if err := s.ingest(r, payload); err != nil {
		var subErr *submissionError
		if errors.As(err, &subErr) {
			writeText(w, http.StatusBadRequest,
				fmt.Sprintf("Error in submission data: %s", subErr.reason))

			return
		}

		s.log.WithError(err).Error("Failed to store build submission")
		writeText(w, http.StatusInternalServerError, "Unknown error")

		return
	}

	writeText(w, http.StatusOK, "success")
}

// submissionError marks client-caused validation failures (bad JSON,
// missing fields) so the handler can answer 400 instead of 500.
type submissionError struct {
	reason string
}

func (e *submissionError) Error() string {
	return e.reason
}

// ingest parses and validates the authenticated payload, then inserts
// the build record.
func (s *server) ingest(r *http.Request, payload string) error {
	var sub submission
	if err := json.Unmarshal([]byte(payload), &sub); err != nil {
		return &submissionError{reason: "invalid json"}
	}

	if missing := sub.missingFields(); len(missing) > 0 {
		return &submissionError{
			reason: "missing fields: " + strings.Join(missing, ", "),
		}
	}

	build := &store.Build{
		Reponame: *sub.Reponame,
		Datetime: *sub.Datetime,
		Result:   *sub.Result,
		Config:   *sub.Config,
	}

	if err := s.store.InsertBuild(r.Context(), build); err != nil {
		return fmt.Errorf("inserting build: %w", err)
	}

	s.log.WithField("reponame", build.Reponame).
		WithField("datetime", build.Datetime).
		WithField("result", build.Result).
		Info("Build report stored")

	return nil
}

// writeText writes a plain text response.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
