package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueryTerm is one node of a query definition. Phrases match as substrings,
// literals match case-insensitively and whole-word.
type QueryTerm struct {
	Value    string `json:"value"`
	IsPhrase bool   `json:"is_phrase,omitempty"`
}

// QueryDefinition is the boolean tree of a saved search: all Include terms
// must match, at least one Any term must match (when Any is non-empty), and
// no Exclude term may match.
type QueryDefinition struct {
	Include []QueryTerm `json:"include"`
	Any     []QueryTerm `json:"any,omitempty"`
	Exclude []QueryTerm `json:"exclude,omitempty"`
}

// ExecutionConfig carries the sanitized allow/deny lists applied to
// candidate articles after the query predicate.
type ExecutionConfig struct {
	ProvidersAllow []string `json:"providers_allow,omitempty"`
	ProvidersDeny  []string `json:"providers_deny,omitempty"`
	DomainsAllow   []string `json:"domains_allow,omitempty"`
	DomainsDeny    []string `json:"domains_deny,omitempty"`
	CountriesAllow []string `json:"countries_allow,omitempty"`
	CountriesDeny  []string `json:"countries_deny,omitempty"`
}

// CompiledQuery is the precomputed projection of a definition to the text
// sent as the provider query parameter.
type CompiledQuery struct {
	Query string `json:"query"`
}

// TrackedQuery is a saved search, unique on (name, language).
type TrackedQuery struct {
	ID                uuid.UUID
	Name              string
	Language          string
	Scope             Scope
	IsActive          bool
	MaxArticlesPerRun int
	Definition        QueryDefinition
	Execution         ExecutionConfig
	Compiled          CompiledQuery
	CurrentRevision   int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TrackedQueryRevision snapshots a query before an edit.
type TrackedQueryRevision struct {
	ID           uuid.UUID
	QueryID      uuid.UUID
	Revision     int
	Definition   QueryDefinition
	Execution    ExecutionConfig
	Compiled     CompiledQuery
	ChangeReason string
	ActorUserID  string
	CreatedAt    time.Time
}
