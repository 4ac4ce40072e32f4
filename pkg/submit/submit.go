// Package submit implements the signing client that posts build
// reports to a buildboard collection endpoint.
package submit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response body is retained.
const maxErrorBody = 64 * 1024

// Submitter signs a payload and posts it to a collection endpoint.
type Submitter interface {
	// Submit posts the payload, signed with secret, to endpoint.
	// A non-200 response is returned as a *StatusError; any other
	// failure is a transport error.
	Submit(ctx context.Context, endpoint, secret string, payload []byte) error
}

// Ensure interface compliance.
var _ Submitter = (*submitter)(nil)

// StatusError reports a non-200 response from the server.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server rejected submission: %s", e.Status)
}

type submitter struct {
	log    logrus.FieldLogger
	client *http.Client
}

// NewSubmitter creates a new Submitter.
func NewSubmitter(log logrus.FieldLogger) Submitter {
	return &submitter{
		log: log.WithField("component", "submitter"),
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Sign computes the lowercase hex HMAC-SHA256 of payload under secret.
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)

	return hex.EncodeToString(mac.Sum(nil))
}

// Submit signs the payload and posts it form-encoded to the endpoint.
func (s *submitter) Submit(
	ctx context.Context, endpoint, secret string, payload []byte,
) error {
	form := url.Values{}
	form.Set("payload", string(payload))
	form.Set("hmac", Sign([]byte(secret), payload))

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/plain")

	s.log.WithField("endpoint", endpoint).
		WithField("bytes", len(payload)).
		Debug("Submitting build report")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting submission: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode != http.StatusOK {
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return nil
}
