package research

import "github.com/MikeSquared-Agency/scout/internal/state"

const productNamePrompt = "Extract the precise product name from this webpage title. Return ONLY the product name, no extra text.\nTitle: %s"

// queryQualifiers bias each researcher's search toward its kind of source.
var queryQualifiers = map[state.Source]string{
	state.SourceAmazon: " 'verified purchase' review 'pros and cons' features technical specifications price comparison",
	state.SourceReddit: " site:reddit.com discussion 'is it worth it' issues solved 'long term review' complaints",
	state.SourceWeb:    " 'in-depth review' benchmarks 'hands-on' alternatives 'vs' blog transcript",
}

const sentimentPrompt = `Analyze the following product research evidence and extract sentiment insights.
Return a valid JSON object with keys: positive_topics (list), negative_topics (list),
rating_distribution (dict 1-5 stars, estimate if needed), average_rating (float), total_reviews (int estimate).

Evidence:
%s
`

const reportPrompt = `You are a product research analyst. Generate a comprehensive, concise, evidence-based product report for '%s'.

Use the following structure:

1. Product Summary
Product Name: [Extract from evidence]
Category: [Determine category]
Overall Verdict: 2–3 sentence summary describing usefulness, value, and tradeoffs.

2. Key Insights
Strengths: [List 3–5 key strengths based on evidence]
Weaknesses: [List 3–5 key weaknesses]
Most Mentioned Issues: [List 2–4 frequently mentioned problems]

3. Ratings Snapshot
Average Rating: [X.X / 5.0]
Total Reviews Analyzed: [Number]
Rating Distribution: 5★: X%% | 4★: X%% | 3★: X%% | 2★: X%% | 1★: X%%

4. Source Breakdown
Amazon/E-commerce: top praises, complaints, patterns
Reddit: community sentiment, frequent pain points, notable insights
Web/Expert reviews: expert impressions, long-term notes

5. Supporting Evidence
Include 5–8 verbatim quotes from the evidence in this format:
[Source – context] "Exact quote"

6. Recommendation
Best For: [3–4 specific user types]
Avoid If: [3–4 scenarios]

7. Confidence Score
Analysis Confidence: [X%%]
Based on evidence strength, diversity, and reliability
Data Summary: Number of sources used: Amazon: [X], Reddit: [Y], Web: [Z]

Instructions:
Follow the structure exactly.
Only use provided evidence.
Be concise, clear, and data-driven.
Do not fabricate information.
Keep the report informative and actionable.

Evidence Input:
%s

Sentiment Analysis:
%s`

const noReportText = "No report available."

const chatSystemPrompt = `You are a helpful product research assistant.
You have generated a detailed report about a product.
Answer the user's follow-up questions based on this report.

If the user asks for information NOT in the report (like current price, new models, or specific details),
use the '%s' tool to find the answer.

Report Content:
%s

Conversation Summary:
%s
`

const searchToolDescription = "A search engine optimized for comprehensive, accurate, and trusted results. Useful for answering questions about current events, prices and product details. Input should be a search query."

const searchToolParameters = `{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "search query to look up"}
	},
	"required": ["query"]
}`

const (
	compactSystemPrompt   = "Distill the following conversation into a concise summary."
	compactExistingPrompt = "Previous summary: %s\n\nNew lines of conversation:\n"
	compactFreshPrompt    = "Summarize the conversation so far:\n"
)
