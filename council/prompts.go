package council

import (
	"fmt"
	"strings"
)

// System prompts for the three stages.
const (
	stage1System = "You are a helpful assistant. Provide thoughtful, accurate, and insightful responses."

	reviewSystem = "You are an expert evaluator of AI responses."

	chairmanSystem = "You are the Chairman of an LLM Council, responsible for synthesizing " +
		"multiple AI responses into a final, comprehensive answer while identifying " +
		"the most valuable contributions."
)

// mostValuableHeading is the exact heading the chairman is instructed to
// emit; extraction also tolerates the common variants (see chairman.go).
const mostValuableHeading = "**Most Valuable Models:**"

// buildReviewPrompt constructs the stage-2 prompt shown to every reviewer.
// It contains the original query and every anonymized stage-1 answer under
// its assigned label, with instructions to rank without knowledge of the
// true identities.
func buildReviewPrompt(query string, anon *anonymization, stage1 map[string]ModelResult) string {
	var sb strings.Builder

	sb.WriteString("You are evaluating multiple responses to the following question:\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nHere are the responses (anonymized):\n\n")

	for _, label := range anon.orderedLabels() {
		member, _ := anon.modelFor(label)
		sb.WriteString(label)
		sb.WriteString(":\n")
		sb.WriteString(stage1[member].Content)
		sb.WriteString("\n\n")
	}

	sb.WriteString(`Please:
1. Rank these responses from best to worst (1 = best)
2. Provide a brief explanation for your ranking
3. Note any strengths or weaknesses in each response

Format your response as:
Ranking: [label] (1st), [label] (2nd), [label] (3rd), etc.
Explanation: [Your explanation]`)

	return sb.String()
}

// buildChairmanPrompt constructs the single stage-3 prompt. The chairman is
// trusted with identities: stage-1 answers are attributed by real member
// name and reviews by reviewer name. A bounded window of prior turns
// provides conversational continuity.
func buildChairmanPrompt(query string, stage1 map[string]ModelResult, stage2 map[string]ReviewResult, priorTurns []Turn, members []string) string {
	var sb strings.Builder

	sb.WriteString("You are the Chairman of an LLM Council. Multiple AI models have provided ")
	sb.WriteString("responses to a question, and other models have reviewed those responses.\n\n")

	if len(priorTurns) > 0 {
		sb.WriteString("Earlier in this conversation:\n\n")
		for _, t := range priorTurns {
			sb.WriteString("User: ")
			sb.WriteString(t.Query)
			sb.WriteString("\nCouncil: ")
			sb.WriteString(t.Stage3.FinalText)
			sb.WriteString("\n\n")
		}
	}

	sb.WriteString("Original Question: ")
	sb.WriteString(query)
	sb.WriteString("\n\nIndividual Responses:\n\n")

	var contributors []string
	for _, member := range members {
		res, ok := stage1[member]
		if !ok || !res.OK() {
			continue
		}
		contributors = append(contributors, member)
		fmt.Fprintf(&sb, "Response from %s:\n%s\n\n", member, res.Content)
	}

	sb.WriteString("Reviews and Rankings:\n\n")
	for _, member := range members {
		rev, ok := stage2[member]
		if !ok || !rev.OK() {
			continue
		}
		fmt.Fprintf(&sb, "Review from %s:\n%s\n\n", member, rev.RawText)
	}

	fmt.Fprintf(&sb, `Your task is to:
1. Synthesize all of this information into a single, comprehensive, and well-reasoned final answer
2. Explicitly identify which model(s) you found most valuable and why

Consider:
- The insights from all individual responses
- The evaluations and rankings from the reviews
- Any consensus or disagreements among the models
- The most accurate and helpful information

IMPORTANT: You MUST format your response EXACTLY as follows:

[Your synthesized final answer here]

---

%s

[Identify 1-3 models from this list: %s]
[Explain which model(s) provided the most valuable insights and why.]`,
		mostValuableHeading, strings.Join(contributors, ", "))

	return sb.String()
}
