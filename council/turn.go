// Package council implements a three-stage deliberation pipeline over a set
// of independently invokable language models.
//
// A submitted query fans out concurrently to every council member (stage 1,
// first opinions). The successful answers are anonymized behind randomly
// permuted labels and fanned out again so every member can critique the set
// without knowing who wrote what (stage 2, review). Finally a designated
// chairman model sees everything de-anonymized, plus prior turns of the
// conversation, and synthesizes the consensus answer (stage 3).
//
// Individual model failures never abort a turn; they are recorded inside the
// turn's result maps. Only three conditions are fatal to a turn: every member
// failing stage 1, the chairman call failing, or the commit to storage
// failing. A fatal turn leaves the conversation exactly as it was.
package council

import (
	"time"

	"github.com/dshills/council-go/council/model"
)

// ResultError is the persisted form of a classified model failure. It mirrors
// model.Error minus the wrapped cause, which does not survive serialization.
type ResultError struct {
	Kind    model.Kind `json:"kind"`
	Message string     `json:"message"`
}

// Error implements the error interface.
func (e *ResultError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// resultError converts a classified failure into its persisted form.
func resultError(err *model.Error) *ResultError {
	if err == nil {
		return nil
	}
	return &ResultError{Kind: err.Kind, Message: err.Message}
}

// ModelResult is one council member's stage-1 outcome: generated content on
// success, a classified error on failure. Exactly one of Content/Error is
// meaningful; Error == nil marks success.
type ModelResult struct {
	Content        string      `json:"content,omitempty"`
	Usage          model.Usage `json:"usage"`
	LatencySeconds float64     `json:"latency_seconds"`
	Error          *ResultError `json:"error,omitempty"`
}

// OK reports whether the call succeeded.
func (r ModelResult) OK() bool { return r.Error == nil }

// Ranking is the structured portion of a review, extracted leniently from
// the reviewer's free text. Order lists anonymous labels best-first.
type Ranking struct {
	Order     []string `json:"order"`
	Rationale string   `json:"rationale,omitempty"`
}

// ReviewResult is one council member's stage-2 outcome. RawText always holds
// the reviewer's full output on success; Ranking is present only when the
// lenient parser could extract a label ordering. A nil Ranking is not a
// failure.
type ReviewResult struct {
	RawText        string      `json:"raw_text,omitempty"`
	Ranking        *Ranking    `json:"ranking,omitempty"`
	Usage          model.Usage `json:"usage"`
	LatencySeconds float64     `json:"latency_seconds"`
	Error          *ResultError `json:"error,omitempty"`
}

// OK reports whether the review call succeeded.
func (r ReviewResult) OK() bool { return r.Error == nil }

// Synthesis is the chairman's stage-3 output. MostValuable highlights which
// contributors most shaped the final answer; it may be empty when the
// chairman omitted the section and no fallback extraction applied.
type Synthesis struct {
	FinalText    string `json:"final_text"`
	MostValuable string `json:"most_valuable,omitempty"`
}

// Turn is one complete three-stage deliberation over a single query.
// Immutable once committed to a conversation.
//
// Stage1 carries exactly one entry per configured member. Stage2 carries one
// entry per reviewing member (all members by default, successful stage-1
// members only when ExcludeFailedReviewers is set).
type Turn struct {
	Query           string                  `json:"query"`
	CreatedAt       time.Time               `json:"created_at"`
	Stage1          map[string]ModelResult  `json:"stage1"`
	Stage2          map[string]ReviewResult `json:"stage2"`
	Stage3          Synthesis               `json:"stage3"`
	DurationSeconds float64                 `json:"duration_seconds"`
}

// ConversationRecord is the persisted shape of one conversation: an
// append-only ordered sequence of committed turns.
type ConversationRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Turns     []Turn    `json:"turns"`
}

// ConversationSummary is the listing shape for a conversation.
type ConversationSummary struct {
	ID         string    `json:"id"`
	FirstQuery string    `json:"first_query"`
	CreatedAt  time.Time `json:"created_at"`
	TurnCount  int       `json:"turn_count"`
}
