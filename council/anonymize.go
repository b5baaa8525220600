package council

import (
	"fmt"
	"math/rand"
	"sort"
)

// anonymization is the turn-scoped bijection between anonymous labels and
// member identities, covering exactly the members with a successful stage-1
// result.
//
// Labels are the stable enumeration "Response 1".."Response K"; which member
// lands behind which label is a fresh uniformly random permutation every
// turn, so a label carries no information about identity, generation order,
// or config ordering. The mapping never leaves this value: review prompts
// see labels only, and the map is dropped after stage 2.
type anonymization struct {
	labelToModel map[string]string
	modelToLabel map[string]string
	labels       []string // "Response 1".."Response K", presentation order
}

// anonymize builds the per-turn label bijection over the stage-1 successes.
// Failed members are excluded entirely; their absence is not disclosed to
// reviewers as an anonymous entry.
func anonymize(stage1 map[string]ModelResult, rng *rand.Rand) *anonymization {
	members := make([]string, 0, len(stage1))
	for member, res := range stage1 {
		if res.OK() {
			members = append(members, member)
		}
	}
	// Map iteration order is already unspecified, but it is not uniformly
	// random. Sort first so the permutation below is the sole source of
	// label assignment.
	sort.Strings(members)

	a := &anonymization{
		labelToModel: make(map[string]string, len(members)),
		modelToLabel: make(map[string]string, len(members)),
		labels:       make([]string, 0, len(members)),
	}

	for i, j := range rng.Perm(len(members)) {
		label := fmt.Sprintf("Response %d", i+1)
		a.labels = append(a.labels, label)
		a.labelToModel[label] = members[j]
		a.modelToLabel[members[j]] = label
	}
	return a
}

// size returns the number of anonymized entries.
func (a *anonymization) size() int { return len(a.labels) }

// orderedLabels returns the labels in presentation order ("Response 1" first).
func (a *anonymization) orderedLabels() []string { return a.labels }

// modelFor resolves a label back to its member identity.
func (a *anonymization) modelFor(label string) (string, bool) {
	m, ok := a.labelToModel[label]
	return m, ok
}

// labelFor returns the label assigned to a member, if it has one.
func (a *anonymization) labelFor(member string) (string, bool) {
	l, ok := a.modelToLabel[member]
	return l, ok
}
