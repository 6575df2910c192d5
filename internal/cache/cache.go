// Package cache implements the editorial core's Redis-backed cache and
// near-duplicate title gate (spec §4.1). Every method degrades to a zero
// value on backend failure rather than returning an error — callers never
// need to special-case a down cache, matching the original service's
// philosophy that the cache is an accelerator, not a source of truth.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/geraldfingburke/editorial-core/internal/config"
)

const (
	urlProcessedTTL  = 7 * 24 * time.Hour
	recentTitlesKey  = "recent_titles"
	recentTitlesCap  = 200
	defaultDupeRatio = 0.85
)

// Cache wraps a Redis client with the editorial core's cache and dedup
// operations.
type Cache struct {
	rdb *redis.Client
	log zerolog.Logger
	cfg *config.Config
}

// New constructs a Cache from cfg.RedisURL. A malformed URL falls back to
// redis.Options{} defaults rather than failing startup — cache
// unavailability is non-fatal by design.
func New(cfg *config.Config, log zerolog.Logger) *Cache {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Str("url", cfg.RedisURL).Msg("invalid redis url, using defaults")
		opts = &redis.Options{Addr: "localhost:6379"}
	}
	return &Cache{rdb: redis.NewClient(opts), log: log, cfg: cfg}
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Get returns the string stored at key, and false if it is absent or the
// backend is unreachable.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		return "", false
	}
	return v, true
}

// Set stores value at key with the given ttl (0 means no expiry). Failures
// are logged and swallowed.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// GetJSON unmarshals the value at key into dest, returning false if absent,
// unreachable, or malformed.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache json decode failed")
		return false
	}
	return true
}

// SetJSON marshals value and stores it at key with the given ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache json encode failed")
		return
	}
	c.Set(ctx, key, string(raw), ttl)
}

// IncrementCounter atomically increments key (creating it at 0 first) and
// returns the new value, refreshing ttl on every call. Returns 0 on backend
// failure, which callers should treat as "unknown", not "zero calls made".
func (c *Cache) IncrementCounter(ctx context.Context, key string, ttl time.Duration) int64 {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache incr failed")
		return 0
	}
	if ttl > 0 {
		c.rdb.Expire(ctx, key, ttl)
	}
	return n
}

func urlKey(url string) string {
	return "processed_url:" + url
}

// IsURLProcessed reports whether url was marked processed within the last
// seven days.
func (c *Cache) IsURLProcessed(ctx context.Context, url string) bool {
	n, err := c.rdb.Exists(ctx, urlKey(url)).Result()
	if err != nil {
		c.log.Warn().Err(err).Msg("cache exists check failed")
		return false
	}
	return n > 0
}

// MarkURLProcessed records url as processed for seven days.
func (c *Cache) MarkURLProcessed(ctx context.Context, url string) {
	c.Set(ctx, urlKey(url), "1", urlProcessedTTL)
}

// AddRecentTitle pushes title onto the bounded recent-titles FIFO, trimming
// to recentTitlesCap entries.
func (c *Cache) AddRecentTitle(ctx context.Context, title string) {
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, recentTitlesKey, title)
	pipe.LTrim(ctx, recentTitlesKey, 0, recentTitlesCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn().Err(err).Msg("cache add recent title failed")
	}
}

// GetRecentTitles returns the bounded FIFO of recently ingested titles, most
// recent first. Returns nil on backend failure.
func (c *Cache) GetRecentTitles(ctx context.Context) []string {
	titles, err := c.rdb.LRange(ctx, recentTitlesKey, 0, recentTitlesCap-1).Result()
	if err != nil {
		c.log.Warn().Err(err).Msg("cache get recent titles failed")
		return nil
	}
	return titles
}

// IsDuplicateTitle reports whether title is a near-duplicate of any recently
// seen title, using Arabic-normalizing fuzzy matching. threshold <= 0 uses
// the default 0.85 similarity ratio.
func (c *Cache) IsDuplicateTitle(ctx context.Context, title string, threshold float64) bool {
	if threshold <= 0 {
		threshold = defaultDupeRatio
	}
	normalized := NormalizeArabic(title)
	if normalized == "" {
		return false
	}
	for _, existing := range c.GetRecentTitles(ctx) {
		if similarityRatio(normalized, NormalizeArabic(existing)) >= threshold {
			return true
		}
	}
	return false
}

// arabicDiacritics covers tashkeel (fatha..sukun, tanwin, shadda) and tatweel,
// all of which are noise for title comparison.
var arabicDiacritics = map[rune]bool{
	'ً': true, 'ٌ': true, 'ٍ': true, 'َ': true,
	'ُ': true, 'ِ': true, 'ّ': true, 'ْ': true,
	'ٓ': true, 'ـ': true,
}

// NormalizeArabic folds diacritics, alef/ya/ta-marbuta variants, collapses
// whitespace, and lowercases Latin characters so that titles differing only
// by orthographic noise compare equal.
func NormalizeArabic(s string) string {
	var b strings.Builder
	for _, r := range s {
		if arabicDiacritics[r] {
			continue
		}
		switch r {
		case 'أ', 'إ', 'آ', 'ٱ':
			r = 'ا'
		case 'ة':
			r = 'ه'
		case 'ى':
			r = 'ي'
		case 'ؤ':
			r = 'و'
		case 'ئ':
			r = 'ي'
		}
		if unicode.IsSpace(r) {
			if b.Len() > 0 && b.String()[b.Len()-1] != ' ' {
				b.WriteRune(' ')
			}
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.TrimSpace(b.String())
}

// similarityRatio computes 1 - (levenshtein distance / max length), the same
// ratio SequenceMatcher-style fuzzy title comparisons use, in [0, 1].
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	dist := levenshtein(ra, rb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
