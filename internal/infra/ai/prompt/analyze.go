package prompt

import "strings"

// ResumeAnalysis returns the strict-JSON instruction prompt sent alongside
// the document on every remote attempt. The schema must stay in sync with
// analysis.ParseResult.
func ResumeAnalysis() string {
	return strings.TrimSpace(`
You are an ATS (Applicant Tracking System) resume analyzer. Evaluate the
attached resume the way real ATS software does and respond ONLY with valid
JSON (no markdown, no code fences, no explanation) in exactly this format:
{
  "atsScore": 75,
  "feedback": {
    "positive": ["specific strength", "..."],
    "improvements": ["specific actionable improvement", "..."]
  },
  "keywords": {
    "extracted": ["skill or technology found in the resume", "..."],
    "missing": ["relevant skill or technology the resume lacks", "..."]
  }
}
Rules:
- "atsScore" is an integer between 0 and 100.
- All four lists are required; use [] when empty, never null.
- Do not invent facts that are not in the resume.
`)
}
