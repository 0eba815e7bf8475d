package classifier

import (
	"fmt"
	"strings"
)

const promptTemplate = `Analyze this article about Sports/Esports business.

Return ONLY a JSON object matching this schema:
{
  "category": "string",
  "relevance_score": number,
  "access_status": "free" | "paywall" | "registration" | "video" | "audio",
  "summary": "string"
}

Provide a concise 1-2 sentence summary in French in the "summary" field, focusing on the business/economic impact mentioned in the article.

You MUST categorize the article into exactly ONE of the following categories: %s. Do not invent new categories. If the article fits multiple, choose the most specific one (for example choose "Milan Cortina 2026" over "Ski"). If unsure, use %q.

Relevance 10 = pure business/economy. Relevance 0 = scores/match recaps.

Article title:
%s

Article URL:
%s

Article content:
%s`

// BuildPrompt renders the classification prompt for one article
func BuildPrompt(title, url, text string) string {
	return strings.TrimSpace(fmt.Sprintf(promptTemplate,
		strings.Join(Categories, ", "),
		DefaultCategory,
		strings.TrimSpace(title),
		strings.TrimSpace(url),
		strings.TrimSpace(text),
	))
}
