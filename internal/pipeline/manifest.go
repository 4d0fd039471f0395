package pipeline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ReadFromFile reads and validates a pipeline spec from a YAML manifest file.
//
// Manifest format:
//
//	name: delivery
//	stages:
//	  - position: 1
//	    name: requirements-analysis
//	    role: product-manager
//	    gated: true
//	    deliverables:
//	      - Product Requirements Document
//	      - User Stories
//
// Stages must be listed in position order, contiguous from 1. The returned
// spec has passed [Spec.Validate].
func ReadFromFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pipeline manifest: %w", err)
	}
	return readFromBytes(data)
}

// ReadFromString parses a pipeline spec from a YAML string.
// This is useful for testing and for embedding pipeline definitions.
func ReadFromString(data string) (*Spec, error) {
	return readFromBytes([]byte(strings.TrimSpace(data)))
}

func readFromBytes(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline manifest: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}
