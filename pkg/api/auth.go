package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Submission auth failures, kept distinct so handlers can report a
// disabled endpoint separately from a bad signature.
var (
	errSubmissionsDisabled = errors.New(
		"the job submission token is not set on this server")
	errMissingPayload   = errors.New("payload missing")
	errMissingSignature = errors.New("hmac missing")
	errBadSignature     = errors.New(
		"message authentication code is incorrect")
)

// verifySignature recomputes the payload's HMAC-SHA256 and compares it
// to the provided hex digest in constant time. The expected digest is
// never part of the returned error.
func verifySignature(secret, payload []byte, providedHex string) error {
	if len(secret) == 0 {
		return errSubmissionsDisabled
	}

	if providedHex == "" {
		return errMissingSignature
	}

	provided, err := hex.DecodeString(providedHex)
	if err != nil {
		return errBadSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)

	if !hmac.Equal(mac.Sum(nil), provided) {
		return errBadSignature
	}

	return nil
}
