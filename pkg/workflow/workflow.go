// Package workflow extracts build tool versions from submitted CI
// workflow configurations. Extraction is best-effort enrichment: a
// config that fails to parse yields sentinel versions, never an error.
package workflow

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// UnknownVersion is stored when a config cannot be parsed or contains
// no recognized build action step.
const UnknownVersion = "unknown_version"

// buildActionMarker identifies the theory-build action in a step's
// `uses` reference.
const buildActionMarker = "isabelle-theory-build-github-action"

// isabelleVersionParam is the step input carrying the Isabelle release.
const isabelleVersionParam = "isabelle-version"

// Versions holds the tool versions derived from a workflow config.
type Versions struct {
	Builder  string
	Isabelle string
}

type document struct {
	Jobs map[string]job `mapstructure:"jobs"`
}

type job struct {
	Steps []step `mapstructure:"steps"`
}

type step struct {
	Uses string            `mapstructure:"uses"`
	With map[string]string `mapstructure:"with"`
}

// ExtractVersions parses config as a GitHub-Actions-shaped YAML document
// and returns the builder and Isabelle versions from the first step whose
// `uses` reference contains the theory-build action marker. Both fields
// fall back to UnknownVersion.
func ExtractVersions(config string) Versions {
	unknown := Versions{
		Builder:  UnknownVersion,
		Isabelle: UnknownVersion,
	}

	doc, err := parse(config)
	if err != nil {
		return unknown
	}

	for _, j := range doc.Jobs {
		for _, st := range j.Steps {
			if !strings.Contains(st.Uses, buildActionMarker) {
				continue
			}

			v := unknown

			// The version suffix follows the last "@" in the action
			// reference, e.g. ".../isabelle-theory-build-github-action@v3".
			if idx := strings.LastIndex(st.Uses, "@"); idx >= 0 && idx+1 < len(st.Uses) {
				v.Builder = st.Uses[idx+1:]
			}

			if iv, ok := st.With[isabelleVersionParam]; ok && iv != "" {
				v.Isabelle = iv
			}

			return v
		}
	}

	return unknown
}

// parse unmarshals the YAML into a generic tree, then decodes it weakly
// typed so numeric step inputs (e.g. `isabelle-version: 2023`) coerce
// to strings.
func parse(config string) (*document, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(config), &raw); err != nil {
		return nil, fmt.Errorf("parsing workflow yaml: %w", err)
	}

	var doc document

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("building workflow decoder: %w", err)
	}

	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding workflow document: %w", err)
	}

	return &doc, nil
}
