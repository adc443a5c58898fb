package extractor

import (
	"fmt"
	"strings"
)

const (
	// ClosingSentence ends every first-attempt prompt
	ClosingSentence = "Return ONLY JSON, nothing else."

	// StricterSentence replaces ClosingSentence after an unparseable reply
	StricterSentence = "CRITICAL: return EXCLUSIVELY a valid JSON object. No text before or after the JSON. Only JSON."
)

const instructions = `You are a data analyst. Analyze ONLY this fragment of the data.

IMPORTANT: reply STRICTLY in JSON format with no extra text:
{
  "count": <number>,
  "items": [<elements, if needed>],
  "summary": "<short description>"
}`

const fewShotExample = `EXAMPLE:
Question: How many ERROR entries are there?
Data:
2024-01-20 10:00:00 INFO Application started
2024-01-20 10:05:00 ERROR Failed to connect
2024-01-20 10:10:00 ERROR Timeout
Answer: {"count": 2, "items": [], "summary": "Found 2 ERROR entries"}`

// BuildPrompt assembles the extraction prompt for chunk index of total
func BuildPrompt(content, question string, index, total int) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n\n")
	b.WriteString(fewShotExample)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "DATA (part %d/%d):\n", index+1, total)
	b.WriteString(content)
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString(ClosingSentence)
	b.WriteString("\n")
	return b.String()
}

// Stricter swaps the closing sentence for the stricter JSON demand.
// Prompts already made stricter are returned unchanged.
func Stricter(prompt string) string {
	if strings.HasSuffix(strings.TrimSpace(prompt), StricterSentence) {
		return prompt
	}
	// The data may quote the closing sentence; only the trailing one is ours
	i := strings.LastIndex(prompt, ClosingSentence)
	if i < 0 {
		return prompt
	}
	return prompt[:i] + StricterSentence + prompt[i+len(ClosingSentence):]
}

// BuildDirectPrompt asks a question about a whole, unchunked document
func BuildDirectPrompt(content, question string) string {
	var b strings.Builder
	b.WriteString("DATA:\n")
	b.WriteString(content)
	b.WriteString("\n\nQUESTION: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer briefly:")
	return b.String()
}
