package retrieval

import "github.com/loophealth/voicebot/internal/hospital"

// Kind tags what the router decided about an utterance.
type Kind string

const (
	// KindExactHit means the utterance named a specific hospital and the
	// matcher found it.
	KindExactHit Kind = "exact_hit"
	// KindSemanticHits means the utterance was a general or geographic query
	// answered by vector search.
	KindSemanticHits Kind = "semantic_hits"
	// KindNeedsClarification means the router wants one more detail before
	// answering.
	KindNeedsClarification Kind = "needs_clarification"
	// KindOutOfScope means the utterance is not a hospital lookup.
	KindOutOfScope Kind = "out_of_scope"
)

// Clarification reasons.
const (
	ReasonEmptyQuery           = "empty_query"
	ReasonMissingLocation      = "missing_location"
	ReasonMultipleCities       = "multiple_cities"
	ReasonRetrievalUnavailable = "retrieval_unavailable"
)

// ScoredRecord pairs a record with its similarity score.
type ScoredRecord struct {
	Record hospital.Record `json:"record"`
	Score  float32         `json:"score"`
}

// Outcome is the router's verdict for one utterance. Exactly one of the
// record fields is populated depending on Kind.
type Outcome struct {
	Kind    Kind              `json:"kind"`
	Records []hospital.Record `json:"records,omitempty"`
	Hits    []ScoredRecord    `json:"hits,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Cities  []string          `json:"cities,omitempty"`
}

// AllRecords flattens exact and semantic results into one record list.
func (o Outcome) AllRecords() []hospital.Record {
	if len(o.Records) > 0 {
		return o.Records
	}
	records := make([]hospital.Record, 0, len(o.Hits))
	for _, h := range o.Hits {
		records = append(records, h.Record)
	}
	return records
}
