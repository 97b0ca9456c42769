package ai

import (
	"errors"
	"fmt"
	"strings"
)

// EntityTypes defines the categories a graph extractor may assign to
// entities. Extractors embed this list in their prompts; entities with
// unlisted types are still accepted but normalized to lowercase.
var EntityTypes = []string{
	"person",
	"organization",
	"place",
	"drug",
	"condition",
	"procedure",
	"symptom",
	"device",
	"document",
	"event",
	"product",
	"substance",
	"abstract concept",
	"other",
}

// RelationTypes defines the valid edge types for extracted relations.
// These types are used by graph extractors to classify connections between
// entities.
var RelationTypes = []string{
	"affects",
	"belongs_to",
	"causes",
	"contains",
	"contraindicates",
	"derived_from",
	"diagnoses",
	"interacts_with",
	"located_in",
	"part_of",
	"precedes",
	"prevents",
	"produces",
	"related_to",
	"treats",
	"used_for",
}

// ValidRelationType reports whether t is one of the allowed relation types.
func ValidRelationType(t string) bool {
	for _, rt := range RelationTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// ProviderKind enumerates the supported generation backends. The kind is
// resolved once at request entry; everything downstream works against the
// Generator interface and its declared capability.
type ProviderKind string

const (
	ProviderOpenAI  ProviderKind = "openai"
	ProviderMistral ProviderKind = "mistral"
)

// ErrUnknownProvider indicates an unrecognized provider kind.
var ErrUnknownProvider = errors.New("unknown provider kind")

// ParseProviderKind resolves a caller-supplied provider name. The empty
// string resolves to ProviderOpenAI.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ProviderOpenAI):
		return ProviderOpenAI, nil
	case string(ProviderMistral):
		return ProviderMistral, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}
