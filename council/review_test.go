package council

import (
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/council-go/council/model"
)

func threeResponseAnon() *anonymization {
	return anonymize(stage1Fixture([]string{"alpha", "beta", "gamma"}, nil), rand.New(rand.NewSource(3)))
}

func TestParseRanking(t *testing.T) {
	anon := threeResponseAnon()

	cases := []struct {
		name          string
		raw           string
		wantOrder     []string
		wantRationale string
		wantNil       bool
	}{
		{
			name:          "requested format",
			raw:           "Ranking: Response 2 (1st), Response 1 (2nd), Response 3 (3rd)\nExplanation: Response 2 was concise.",
			wantOrder:     []string{"Response 2", "Response 1", "Response 3"},
			wantRationale: "Response 2 was concise.",
		},
		{
			name:      "bolded heading",
			raw:       "**Ranking:** Response 1 (1st), Response 3 (2nd)",
			wantOrder: []string{"Response 1", "Response 3"},
		},
		{
			name:      "lowercase and dash separator",
			raw:       "ranking - Response 3, Response 2, Response 1",
			wantOrder: []string{"Response 3", "Response 2", "Response 1"},
		},
		{
			name:      "no heading falls back to mention order",
			raw:       "I think Response 2 is best. Response 1 comes next, then Response 3.",
			wantOrder: []string{"Response 2", "Response 1", "Response 3"},
		},
		{
			name:      "duplicates keep first position",
			raw:       "Ranking: Response 1, Response 2, Response 1",
			wantOrder: []string{"Response 1", "Response 2"},
		},
		{
			name:      "unknown labels ignored",
			raw:       "Ranking: Response 9 (1st), Response 2 (2nd)",
			wantOrder: []string{"Response 2"},
		},
		{
			name:    "no labels at all",
			raw:     "These were all fine answers.",
			wantNil: true,
		},
		{
			name:    "empty text",
			raw:     "",
			wantNil: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseRanking(tc.raw, anon)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("expected nil ranking, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a ranking, got nil")
			}
			if !reflect.DeepEqual(got.Order, tc.wantOrder) {
				t.Errorf("order = %v, want %v", got.Order, tc.wantOrder)
			}
			if tc.wantRationale != "" && !strings.Contains(got.Rationale, tc.wantRationale) {
				t.Errorf("rationale = %q, want to contain %q", got.Rationale, tc.wantRationale)
			}
		})
	}
}

func TestToReviewResult(t *testing.T) {
	anon := threeResponseAnon()

	t.Run("success with ranking", func(t *testing.T) {
		res := ModelResult{
			Content:        "Ranking: Response 1 (1st), Response 2 (2nd)\nExplanation: clear winner.",
			Usage:          model.Usage{TotalTokens: 20},
			LatencySeconds: 0.5,
		}
		got := toReviewResult(res, anon)
		if !got.OK() {
			t.Fatalf("unexpected error: %v", got.Error)
		}
		if got.RawText != res.Content {
			t.Error("raw text must be preserved verbatim")
		}
		if got.Ranking == nil || len(got.Ranking.Order) != 2 {
			t.Errorf("ranking = %+v, want 2 entries", got.Ranking)
		}
		if got.Usage.TotalTokens != 20 || got.LatencySeconds != 0.5 {
			t.Error("usage and latency must carry over")
		}
	})

	t.Run("unparseable is not a failure", func(t *testing.T) {
		got := toReviewResult(ModelResult{Content: "no structure here"}, anon)
		if !got.OK() {
			t.Fatal("parse failure must not become a review failure")
		}
		if got.Ranking != nil {
			t.Errorf("ranking = %+v, want nil", got.Ranking)
		}
		if got.RawText != "no structure here" {
			t.Error("raw text must be retained")
		}
	})

	t.Run("call failure carries through", func(t *testing.T) {
		res := ModelResult{Error: &ResultError{Kind: model.KindTimeout, Message: "late"}}
		got := toReviewResult(res, anon)
		if got.OK() {
			t.Fatal("expected error result")
		}
		if got.Error.Kind != model.KindTimeout {
			t.Errorf("kind = %s, want %s", got.Error.Kind, model.KindTimeout)
		}
	})
}
