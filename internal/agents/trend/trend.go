// Package trend implements the Trend Radar agent (spec §4.4.4): cross-source
// semantic intersection over Google Trends, competitor RSS headlines, and the
// cache's recent-titles burst signal, ported from
// original_source/backend/app/agents/trend_radar.py.
package trend

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/cache"
	"github.com/geraldfingburke/editorial-core/internal/config"
	"github.com/geraldfingburke/editorial-core/internal/llm"
	"github.com/geraldfingburke/editorial-core/internal/notify"
)

// googleTrendsURL is Google Trends' daily trending-searches RSS for Algeria.
const googleTrendsURL = "https://trends.google.com/trends/trendingsearches/daily/rss?geo=DZ"

// competitorFeeds cross-reference verified trends against rival newsroom
// headlines, so a keyword is never flagged on a single source's say-so.
var competitorFeeds = []string{
	"https://www.echoroukonline.com/feed/",
	"https://www.elkhabar.com/feed/",
	"https://www.ennaharonline.com/feed/",
	"https://www.tsa-algerie.com/feed/",
	"https://www.aps.dz/xml/rss",
}

const (
	burstMinMentions  = 3
	minTrendWordLen   = 3
	topTrendsPerScan  = 5
	trendAnalysisTTL  = 30 * time.Minute
)

// Candidate is a keyword that appeared in at least two of the three signal
// sources (Google Trends, competitor headlines, RSS burst detection).
type Candidate struct {
	Keyword       string
	SourceSignals []string
	Strength      int
}

// Alert is a Candidate enriched with an editorial angle, once available.
type Alert struct {
	Candidate
	Reason          string
	SuggestedAngles []string
	ArchiveMatches  []string
}

type analysisResponse struct {
	Reason          string   `json:"reason"`
	Relevant        bool     `json:"relevant"`
	Angles          []string `json:"angles"`
	ArchiveKeywords []string `json:"archive_keywords"`
}

// Agent is the Trend Radar agent.
type Agent struct {
	cache  *cache.Cache
	llm    llm.Client
	notify notify.Notifier
	cfg    *config.Config
	log    zerolog.Logger
	feed   *gofeed.Parser
	http   *http.Client
}

// New constructs a Trend Radar agent.
func New(c *cache.Cache, llmClient llm.Client, notifier notify.Notifier, cfg *config.Config, log zerolog.Logger) *Agent {
	return &Agent{
		cache:  c,
		llm:    llmClient,
		notify: notifier,
		cfg:    cfg,
		log:    log,
		feed:   gofeed.NewParser(),
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Scan runs one full trend cycle: multi-source scan, cross-validation,
// AI contextual analysis on the strongest candidates, and distribution.
func (a *Agent) Scan(ctx context.Context) ([]Alert, error) {
	googleTrends := a.fetchGoogleTrends(ctx)
	competitorKeywords := a.fetchCompetitorKeywords(ctx)
	rssBursts := a.detectRSSBursts(ctx)

	verified := crossValidate(googleTrends, competitorKeywords, rssBursts)
	if len(verified) == 0 {
		a.log.Info().Msg("no_verified_trends")
		return nil, nil
	}

	top := verified
	if len(top) > topTrendsPerScan {
		top = top[:topTrendsPerScan]
	}

	var alerts []Alert
	for _, candidate := range top {
		alert := a.analyzeTrend(ctx, candidate)
		if alert == nil {
			continue
		}
		alerts = append(alerts, *alert)
	}

	for _, alert := range alerts {
		a.sendAlert(ctx, alert)
	}

	a.log.Info().Int("verified", len(verified)).Int("alerts", len(alerts)).Msg("trend_scan_complete")
	return alerts, nil
}

func (a *Agent) fetchGoogleTrends(ctx context.Context) []string {
	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	feed, err := a.feed.ParseURLWithContext(googleTrendsURL, fetchCtx)
	if err != nil {
		a.log.Warn().Err(err).Msg("google_trends_error")
		return nil
	}

	var out []string
	for _, item := range feed.Items {
		if item.Title == "" {
			continue
		}
		out = append(out, normalizeText(item.Title))
	}
	return out
}

func (a *Agent) fetchCompetitorKeywords(ctx context.Context) []string {
	var keywords []string
	for _, feedURL := range competitorFeeds {
		fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		feed, err := a.feed.ParseURLWithContext(feedURL, fetchCtx)
		cancel()
		if err != nil {
			continue
		}
		items := feed.Items
		if len(items) > 10 {
			items = items[:10]
		}
		for _, item := range items {
			title := normalizeText(item.Title)
			if title == "" {
				continue
			}
			for _, w := range strings.Fields(title) {
				if len([]rune(w)) > minTrendWordLen {
					keywords = append(keywords, w)
				}
			}
		}
	}
	return keywords
}

// detectRSSBursts finds words that suddenly co-occur across multiple
// recently ingested titles — a burst, distinct from a single viral story.
func (a *Agent) detectRSSBursts(ctx context.Context) []string {
	recentTitles := a.cache.GetRecentTitles(ctx)
	if len(recentTitles) == 0 {
		return nil
	}

	counts := map[string]int{}
	for _, title := range recentTitles {
		normalized := normalizeText(title)
		for _, w := range strings.Fields(normalized) {
			if len([]rune(w)) > minTrendWordLen {
				counts[w]++
			}
		}
	}

	var bursts []string
	for word, count := range counts {
		if count >= burstMinMentions {
			bursts = append(bursts, word)
		}
	}
	return bursts
}

// crossValidate implements the semantic-intersection algorithm: a Google
// Trends keyword is verified only once a word from it also turns up in
// competitor headlines or the RSS burst set.
func crossValidate(googleTrends, competitorKeywords, rssBursts []string) []Candidate {
	competitorSet := toSet(competitorKeywords)
	burstSet := toSet(rssBursts)
	seen := map[string]bool{}

	var verified []Candidate
	for _, trend := range dedupe(googleTrends) {
		sources := []string{"google_trends"}
		words := strings.Fields(trend)

		for _, w := range words {
			if competitorSet[w] {
				sources = append(sources, "competitors")
				break
			}
		}
		for _, w := range words {
			if burstSet[w] {
				sources = append(sources, "rss_burst")
				break
			}
		}

		if len(sources) >= 2 {
			verified = append(verified, Candidate{
				Keyword:       trend,
				SourceSignals: sources,
				Strength:      minInt(len(sources)*3+2, 10),
			})
			seen[trend] = true
		}
	}

	for _, burstWord := range rssBursts {
		if competitorSet[burstWord] && !seen[burstWord] {
			verified = append(verified, Candidate{
				Keyword:       burstWord,
				SourceSignals: []string{"rss_burst", "competitors"},
				Strength:      6,
			})
			seen[burstWord] = true
		}
	}

	sort.SliceStable(verified, func(i, j int) bool { return verified[i].Strength > verified[j].Strength })
	return verified
}

// analyzeTrend enriches a verified candidate with an AI-suggested editorial
// angle, skipping candidates analyzed within the last 30 minutes.
func (a *Agent) analyzeTrend(ctx context.Context, candidate Candidate) *Alert {
	cacheKey := "trend:" + candidate.Keyword
	if _, ok := a.cache.Get(ctx, cacheKey); ok {
		return nil
	}

	system := "You are a senior editor at an Algerian Arabic-language newsroom analyzing a viral keyword."
	user := fmt.Sprintf(
		"Keyword: %s\nSource signals: %s\n\n"+
			"1. Why is this trending now in Algeria?\n"+
			"2. Is it relevant to news, sports, or culture?\n"+
			"3. Provide 2 journalistic angles for this audience.\n"+
			"4. Suggest archive search terms.\n\n"+
			"Return JSON: {\"reason\":string,\"relevant\":bool,\"angles\":[string],\"archive_keywords\":[string]}",
		candidate.Keyword, strings.Join(candidate.SourceSignals, ", "))

	var result analysisResponse
	if err := a.llm.GenerateJSON(ctx, system, user, &result); err != nil {
		a.log.Warn().Err(err).Str("keyword", candidate.Keyword).Msg("trend_analysis_error")
		return &Alert{Candidate: candidate}
	}

	a.cache.IncrementCounter(ctx, "ai_calls_today", 24*time.Hour)
	a.cache.Set(ctx, cacheKey, "analyzed", trendAnalysisTTL)
	if !result.Relevant {
		return nil
	}

	return &Alert{
		Candidate:       candidate,
		Reason:          result.Reason,
		SuggestedAngles: result.Angles,
		ArchiveMatches:  result.ArchiveKeywords,
	}
}

func (a *Agent) sendAlert(ctx context.Context, alert Alert) {
	angles := "-"
	if len(alert.SuggestedAngles) > 0 {
		var b strings.Builder
		for _, angle := range alert.SuggestedAngles {
			b.WriteString("  • " + angle + "\n")
		}
		angles = strings.TrimRight(b.String(), "\n")
	}
	archive := "-"
	if len(alert.ArchiveMatches) > 0 {
		archive = strings.Join(alert.ArchiveMatches, ", ")
	}

	message := fmt.Sprintf(
		"Rising trend: %s\n\nStrength: %d/10\nSources: %s\n\nReason: %s\n\nSuggested angles:\n%s\n\nArchive search: %s",
		alert.Keyword, alert.Strength, strings.Join(alert.SourceSignals, ", "),
		firstNonEmpty(alert.Reason, "not available"), angles, archive,
	)
	a.notify.Notify(ctx, notify.SeverityInfo, "Trend radar", message)
}

// arabicDiacriticsRe-equivalent normalization reuses the cache package's
// Arabic folding so trend words compare the same way recent titles do.
func normalizeText(s string) string {
	return cache.NormalizeArabic(s)
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func dedupe(values []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
