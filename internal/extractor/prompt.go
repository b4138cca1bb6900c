package extractor

import (
	"fmt"
	"strings"
)

// buildPrompt renders the fixed extraction instructions around the
// truncated email text. The filtering criteria live in the prompt itself;
// the model is told to return an empty jobs array rather than omit it.
func (c *Client) buildPrompt(text string) string {
	var b strings.Builder

	b.WriteString("Analyze the job listings below.\n\n")

	b.WriteString("KEEP a job if ANY of these are true:\n")
	fmt.Fprintf(&b, "1. ROLE: Matches %s.\n", strings.Join(c.filter.TargetRoles, ", "))
	fmt.Fprintf(&b, "2. PAY: > %d LPA (CTC).\n", c.filter.MinSalaryLPA)
	b.WriteString("3. REPUTATION: Recognized tech company or high-growth startup.\n\n")

	if len(c.filter.ForbiddenKeywords) > 0 {
		fmt.Fprintf(&b, "DISCARD any job mentioning: %s.\n\n", strings.Join(c.filter.ForbiddenKeywords, ", "))
	}

	b.WriteString("OUTPUT JSON format:\n")
	b.WriteString(`{
    "jobs": [
        {
            "role": "Job Title",
            "company": "Company Name",
            "salary": "e.g. 25-35 LPA",
            "experience": "e.g. 2-4 years",
            "location": "City",
`)
	fmt.Fprintf(&b, "            \"match_reason\": \"e.g. High Salary > %d LPA\",\n", c.filter.MinSalaryLPA)
	b.WriteString(`            "apply_link": "URL"
        }
    ]
}
`)
	b.WriteString("\nIf no job qualifies, return {\"jobs\": []} rather than omitting the field.\n")

	b.WriteString("\nEmail Content:\n")
	b.WriteString(text)

	return b.String()
}
