package roles

import (
	"fmt"
	"strings"
)

// Prompt builders. Pure string assembly so the workflow can construct
// prompts deterministically; every dynamic input arrives as an argument.

// WebResearchPrompt asks for current, citable findings on the topic.
func WebResearchPrompt(topic string) string {
	return fmt.Sprintf(`Research the topic below and report the most important current facts, figures, and developments.

Topic: %s

Requirements:
- Report 8-12 distinct findings as bullet points.
- Every finding that states a number, date, or quotation must carry an inline markdown citation to a real, publicly reachable URL: [source](https://...).
- Prefer primary sources and official publications.
- Do not speculate; omit anything you cannot cite.`, topic)
}

// BackgroundResearchPrompt asks for stable context and history.
func BackgroundResearchPrompt(topic string) string {
	return fmt.Sprintf(`Provide background context for an in-depth article on the topic below.

Topic: %s

Cover: origins and history, key concepts and terminology, the main actors or organizations involved, and how the subject has evolved. Use inline markdown citations [source](https://...) for specific factual assertions. Write in clear prose paragraphs.`, topic)
}

// SynthesisPrompt merges the evidence package into an article brief.
func SynthesisPrompt(topic string, webNotes, backgroundNotes string, knowledgePassages []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Synthesize the research below into a structured article brief for the topic: %s

`, topic)
	b.WriteString("## Web research findings\n")
	writeSection(&b, webNotes)
	b.WriteString("\n## Background research\n")
	writeSection(&b, backgroundNotes)
	if len(knowledgePassages) > 0 {
		b.WriteString("\n## Knowledge base passages\n")
		for _, p := range knowledgePassages {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	b.WriteString(`
Produce: a working title, a one-paragraph angle, an ordered section outline with the key evidence assigned to each section, and a list of the strongest citations carried over from the research (keep their URLs intact). Flag any contradictions between sources.`)
	return b.String()
}

// WritePrompt produces the full draft. corrections is empty on the first
// pass; on iteration it carries the rejection reasons and the failed
// claims the rewrite must fix.
func WritePrompt(topic string, wordTarget int, brief string, corrections []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Write a complete long-form article on: %s

Target length: about %d words.

Article brief:
%s

Requirements:
- Markdown with ## section headings.
- Every specific number, date, or quotation must carry an inline citation [source](https://...) taken from the brief's sources.
- Do not invent citations or URLs. If a fact has no source in the brief, leave it out.
- Open with a strong lede, close with a forward-looking conclusion.`, topic, wordTarget, brief)

	if len(corrections) > 0 {
		b.WriteString("\n\nA fact-check of the previous draft failed. Fix every item below; rewrite or drop the offending statements rather than restating them:\n")
		for _, c := range corrections {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	return b.String()
}

// SEOPrompt asks for search metadata for a finished draft.
func SEOPrompt(topic, draft string) string {
	return fmt.Sprintf(`Generate SEO metadata for the article below on "%s".

Return exactly this YAML structure and nothing else:
title: <60 chars max>
description: <155 chars max>
keywords: [<5-8 keywords>]
slug: <url-safe-slug>

Article:
%s`, topic, truncateForPrompt(draft, 8000))
}

// MetricsPrompt asks for a readability report on a draft.
func MetricsPrompt(draft string) string {
	return fmt.Sprintf(`Analyze the article below. Return exactly this YAML structure and nothing else:
word_count: <int>
reading_time_minutes: <int>
reading_level: <e.g. "general audience", "specialist">
tone: <one phrase>
structure_notes: <one sentence>

Article:
%s`, truncateForPrompt(draft, 8000))
}

// SummaryPrompt asks for an executive summary of the approved article.
func SummaryPrompt(draft string) string {
	return fmt.Sprintf(`Write an executive summary of the article below: 3-5 bullet points followed by a one-paragraph takeaway. Preserve inline citations on any figures you repeat.

Article:
%s`, truncateForPrompt(draft, 10000))
}

// SocialPrompt asks for per-platform promotional variants.
func SocialPrompt(topic, draft string) string {
	return fmt.Sprintf(`Write social media posts promoting an article on "%s". Return exactly this YAML structure and nothing else:
twitter: <under 280 chars, no hashtag spam>
linkedin: <2-3 sentences, professional>
newsletter_blurb: <2 sentences>

Article:
%s`, topic, truncateForPrompt(draft, 6000))
}

func writeSection(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		b.WriteString("(no findings available)\n")
		return
	}
	b.WriteString(text)
	b.WriteString("\n")
}

// truncateForPrompt bounds draft excerpts so enhancement prompts stay
// within small-tier context limits. Cuts on a rune boundary.
func truncateForPrompt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "\n[truncated]"
}
