// Package explain produces structured, descriptive explanations of market
// questions. A deterministic mock generator serves as both the offline
// mode and the fallback whenever the live LLM call fails or returns
// something unparseable: the explain surface never hard-fails on upstream
// trouble.
package explain

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SectionType identifies a block of the structured answer.
type SectionType string

const (
	SectionCurrentSituation   SectionType = "currentSituation"
	SectionKeyDrivers         SectionType = "keyDrivers"
	SectionRiskOpportunity    SectionType = "riskOpportunity"
	SectionHistoricalBehavior SectionType = "historicalBehavior"
	SectionRecap              SectionType = "recap"
)

// Section is one block of the structured answer.
type Section struct {
	Type         SectionType `json:"sectionType"`
	Content      string      `json:"content"`
	BulletPoints []string    `json:"bulletPoints,omitempty"`
}

// SourceReference is a supporting citation.
type SourceReference struct {
	Title      string `json:"title"`
	Source     string `json:"source"`
	SourceType string `json:"sourceType"`
	Summary    string `json:"summary"`
}

// Request is an explanation query.
type Request struct {
	Query          string `json:"query"`
	Ticker         string `json:"ticker,omitempty"`
	IncludeSources bool   `json:"includeSources,omitempty"`
	SimpleMode     bool   `json:"simpleMode,omitempty"`
}

// Response is the structured answer with provenance.
type Response struct {
	Query     string            `json:"query"`
	Sections  []Section         `json:"sections"`
	Sources   []SourceReference `json:"sources,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
}

const (
	sourceMock   = "mock"
	sourceOpenAI = "openai"
)

const systemPrompt = `You are a neutral market explainer for everyday investors.

CORE RULES:
- You NEVER say "buy", "sell", "you should", or make direct recommendations.
- You explain in calm, clear language what is happening and why.
- You describe historical patterns without predicting the future.
- NEVER invent headlines, earnings dates, or analyst ratings.

Respond ONLY with a valid JSON object (no markdown, no code blocks) with these exact keys:
- whatsHappeningNow: A 2-3 sentence description of the current situation
- keyDrivers: An array of 3-4 key factors as strings
- riskVsOpportunity: A balanced 2-3 sentence perspective on both sides
- historicalBehavior: A 2-3 sentence description of how this has behaved historically
- simpleRecap: A single sentence summary in plain language`

const simpleModeInstruction = `

When explaining:
- Use simple, everyday language
- Avoid financial jargon
- Keep sentences short and clear`

// Options configures a Service. The zero value is a pure mock service.
type Options struct {
	// Client, when set, enables live explanations. Nil means mock only.
	Client *ChatClient
	Clock  func() time.Time
	Logger zerolog.Logger
}

// Service generates explanations.
type Service struct {
	client *ChatClient
	now    func() time.Time
	log    zerolog.Logger
}

func NewService(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Service{client: opts.Client, now: opts.Clock, log: opts.Logger}
}

// Explain answers a query. Live mode asks the chat endpoint and falls
// back to the mock generator on any failure.
func (s *Service) Explain(ctx context.Context, req Request) (Response, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		ticker = extractTicker(req.Query)
	}

	if s.client == nil {
		return s.mockResponse(req, ticker), nil
	}

	prompt := systemPrompt
	if req.SimpleMode {
		prompt += simpleModeInstruction
	}
	content, err := s.client.Complete(ctx, prompt, buildUserMessage(req.Query, ticker))
	if err != nil {
		s.log.Warn().Err(err).Str("query", req.Query).Msg("live explanation failed, using mock")
		return s.mockResponse(req, ticker), nil
	}

	payload, ok := parsePayload(content)
	if !ok {
		s.log.Warn().Str("query", req.Query).Msg("unparseable completion, using mock")
		return s.mockResponse(req, ticker), nil
	}

	sections := []Section{
		{Type: SectionCurrentSituation, Content: payload.WhatsHappeningNow},
		{Type: SectionKeyDrivers, Content: "Several factors are driving the current market dynamics.", BulletPoints: payload.KeyDrivers},
		{Type: SectionRiskOpportunity, Content: payload.RiskVsOpportunity},
	}
	// Models sometimes drop the historical key despite the prompt; a
	// missing section beats one with empty content.
	if payload.HistoricalBehavior != "" {
		sections = append(sections, Section{Type: SectionHistoricalBehavior, Content: payload.HistoricalBehavior})
	}
	sections = append(sections, Section{Type: SectionRecap, Content: payload.SimpleRecap})

	resp := Response{
		Query:     req.Query,
		Sections:  sections,
		Timestamp: s.now().UTC(),
		Source:    sourceOpenAI,
	}
	if req.IncludeSources {
		resp.Sources = mockSources(ticker)
	}
	return resp, nil
}

func buildUserMessage(query, ticker string) string {
	parts := []string{"User question: " + query}
	if ticker != "" {
		parts = append(parts, "The question concerns the ticker "+ticker+".")
	} else {
		parts = append(parts, "This is a MACRO question about general market conditions; do not invent ticker data.")
	}
	return strings.Join(parts, "\n")
}

// payload is the JSON shape the model is instructed to produce.
type payload struct {
	WhatsHappeningNow  string   `json:"whatsHappeningNow"`
	KeyDrivers         []string `json:"keyDrivers"`
	RiskVsOpportunity  string   `json:"riskVsOpportunity"`
	HistoricalBehavior string   `json:"historicalBehavior"`
	SimpleRecap        string   `json:"simpleRecap"`
}

func (p payload) complete() bool {
	return p.WhatsHappeningNow != "" && len(p.KeyDrivers) > 0 &&
		p.RiskVsOpportunity != "" && p.SimpleRecap != ""
}

var (
	codeBlockRe  = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// parsePayload tries progressively looser extraction: the raw text, a
// fenced code block, then the first {...} span. Models do not always
// follow the "no markdown" instruction.
func parsePayload(content string) (payload, bool) {
	candidates := []string{strings.TrimSpace(content)}
	if m := codeBlockRe.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := jsonObjectRe.FindString(content); m != "" {
		candidates = append(candidates, strings.TrimSpace(m))
	}

	for _, candidate := range candidates {
		var p payload
		if err := json.Unmarshal([]byte(candidate), &p); err == nil && p.complete() {
			return p, true
		}
	}
	return payload{}, false
}

var knownTickers = map[string]struct{}{
	"NVDA": {}, "AAPL": {}, "MSFT": {}, "GOOGL": {}, "AMZN": {},
	"META": {}, "TSLA": {}, "SPY": {}, "QQQ": {}, "AMD": {},
}

var nonAlpha = regexp.MustCompile(`[^A-Z]`)

// extractTicker scans the query for a known uppercase ticker symbol.
func extractTicker(query string) string {
	for _, word := range strings.Fields(strings.ToUpper(query)) {
		clean := nonAlpha.ReplaceAllString(word, "")
		if _, ok := knownTickers[clean]; ok {
			return clean
		}
	}
	return ""
}

func (s *Service) mockResponse(req Request, ticker string) Response {
	resp := Response{
		Query: req.Query,
		Sections: []Section{
			{Type: SectionCurrentSituation, Content: situationContent(ticker)},
			{Type: SectionKeyDrivers, Content: "Several factors are driving the current market dynamics.", BulletPoints: driverBullets(ticker)},
			{Type: SectionRiskOpportunity, Content: riskContent(ticker)},
			{Type: SectionRecap, Content: recapContent(ticker)},
		},
		Timestamp: s.now().UTC(),
		Source:    sourceMock,
	}
	if req.IncludeSources {
		resp.Sources = mockSources(ticker)
	}
	return resp
}

func situationContent(ticker string) string {
	if ticker != "" {
		return ticker + " is showing interesting market dynamics today. " +
			"Trading volume has been above average, and price action suggests " +
			"institutional participation in the recent moves."
	}
	return "The broader market is navigating several cross-currents right now. " +
		"Economic data continues to influence Fed expectations, " +
		"while earnings season provides company-specific catalysts."
}

func driverBullets(ticker string) []string {
	switch ticker {
	case "NVDA", "AMD":
		return []string{
			"AI infrastructure demand remains robust",
			"Data center GPU orders accelerating",
			"Supply chain constraints easing",
			"Competition dynamics evolving",
		}
	case "AAPL", "MSFT", "GOOGL":
		return []string{
			"Enterprise software spending trends",
			"Consumer device refresh cycles",
			"Cloud computing growth rates",
			"AI integration roadmap",
		}
	default:
		return []string{
			"Macroeconomic conditions and Fed policy",
			"Sector rotation patterns",
			"Earnings expectations vs. reality",
			"Technical support and resistance levels",
		}
	}
}

func riskContent(ticker string) string {
	if ticker != "" {
		return "For " + ticker + ", the risk/reward setup depends on your timeframe. " +
			"Near-term volatility could present opportunities for active traders, " +
			"while longer-term investors may focus on fundamental trends."
	}
	return "The current market environment presents both opportunities and risks. " +
		"Diversification and position sizing remain important considerations."
}

func recapContent(ticker string) string {
	if ticker != "" {
		return "In short: " + ticker + " is navigating a dynamic environment with " +
			"multiple catalysts in play. Stay focused on your strategy."
	}
	return "The market is doing what markets do: presenting both challenges and opportunities."
}

func mockSources(ticker string) []SourceReference {
	if ticker != "" {
		return []SourceReference{
			{
				Title:      ticker + " Sees Strong Institutional Interest",
				Source:     "Reuters",
				SourceType: "news",
				Summary:    "Recent 13F filings show increased hedge fund positioning.",
			},
			{
				Title:      "Technical Analysis: " + ticker + " Chart Patterns",
				Source:     "TradingView",
				SourceType: "analysis",
				Summary:    "Key support and resistance levels to watch.",
			},
		}
	}
	return []SourceReference{
		{
			Title:      "Fed Minutes Reveal Policy Deliberations",
			Source:     "Federal Reserve",
			SourceType: "filings",
			Summary:    "Committee members discussed data-dependent approach.",
		},
	}
}
