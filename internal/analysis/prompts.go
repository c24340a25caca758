// Package analysis turns screen context, memory context and a user query
// into a streamed LLM answer, and executes the model's store_memory tool
// calls against the vector memory.
package analysis

import (
	"fmt"
	"strings"
)

// systemPrompt is the fixed assistant identity sent with every analysis
// request.
const systemPrompt = `You are Big Ear, an AI listening assistant developed to analyze and solve problems. Your responses must be specific, accurate, and actionable.

CORE IDENTITY:
- You are Big Ear, a good listener.
- Your responses must be specific, accurate, and actionable.

GENERAL GUIDELINES:
- NEVER use meta-phrases (e.g., "let me help you").
- NEVER summarize unless explicitly requested.
- NEVER provide unsolicited advice.
- NEVER refer to "screenshot" or "image" - refer to it as "the screen".
- ALWAYS be specific, detailed, and accurate.
- ALWAYS use markdown formatting.
- Render all math using LaTeX: $...$ for in-line, $$...$$ for multi-line.
- If asked about your model, say: "I am Big Ear, a listening assistant."

UI/SCREEN NAVIGATION:
- Provide EXTREMELY detailed step-by-step instructions.
- Specify exact button/menu names, locations, visual identifiers.`

// summarizeSystemPrompt instructs the model for transcript compression.
const summarizeSystemPrompt = `You are a transcript summarizer. Compress conversation transcripts into dense, information-preserving summaries. Preserve: speaker identities, key topics, questions asked, decisions made, action items, important facts/numbers. Omit: filler words, redundant statements, pleasantries. Output only the summary.`

// analysisPrompt renders the human message for an analysis request.
func analysisPrompt(contextText, memoryContext, userQuery string) string {
	if contextText == "" {
		contextText = "No text detected via OCR."
	}
	if userQuery == "" {
		userQuery = "Analyze this screen."
	}
	return fmt.Sprintf(
		"Context from screen (OCR) with bounding boxes [x1, y1, x2, y2]:\n%s\n\n%s\n\nUser Query: %s\n\nPlease provide a concise, helpful response. Use the spatial coordinates to understand the layout.",
		contextText, memoryContext, userQuery)
}

// memoryContext renders retrieved records as a labeled bullet list, or the
// empty string when there is nothing to show.
func memoryContext(records []string) string {
	if len(records) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\nRelevant Past Context:\n")
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(r)
	}
	return b.String()
}

// summarizePrompt renders the human message for transcript compression.
// The target ratio scales with how far the transcript overshoots maxLength.
func summarizePrompt(transcript string, maxLength int) string {
	ratio := 3
	if maxLength > 0 {
		ratio = max(2, len(transcript)/max(maxLength, 100))
	}
	return fmt.Sprintf("Summarize this transcript concisely (aim for ~%dx compression):\n\n%s", ratio, transcript)
}
