// Package gamma resolves the active hourly BTC up/down market and its two
// outcome tokens.
package gamma

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultURL = "https://gamma-api.polymarket.com"

// DefaultUserAgent mimics a browser UA to avoid Cloudflare 403s.
const DefaultUserAgent = "Mozilla/5.0"

// ErrNoMarket means neither the slug lookup nor the active-market search matched.
var ErrNoMarket = errors.New("no active bitcoin up/down market")

type Client struct {
	host       string
	httpClient *http.Client
	userAgent  string
	now        func() time.Time
}

func NewClient(host string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("gamma url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("gamma url must be http(s), got %q", host)
	}

	return &Client{
		host:       host,
		httpClient: &http.Client{Timeout: 12 * time.Second},
		userAgent:  DefaultUserAgent,
		now:        time.Now,
	}, nil
}

// stringList accepts both a JSON array and a string holding a JSON array.
type stringList []string

func (s *stringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = nil
		return nil
	}
	if b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*s = nil
			return nil
		}
		b = []byte(raw)
	}
	var vals []string
	if err := json.Unmarshal(b, &vals); err != nil {
		return err
	}
	*s = vals
	return nil
}

type market struct {
	Slug         string     `json:"slug"`
	Question     string     `json:"question"`
	Outcomes     stringList `json:"outcomes"`
	ClobTokenIDs stringList `json:"clobTokenIds"`
}

// marketList accepts a bare array or a {"data":[...]} page.
type marketList []market

func (l *marketList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var page struct {
			Data []market `json:"data"`
		}
		if err := json.Unmarshal(b, &page); err != nil {
			return err
		}
		*l = page.Data
		return nil
	}
	var ms []market
	if err := json.Unmarshal(b, &ms); err != nil {
		return err
	}
	*l = ms
	return nil
}

// Pair is the resolved instrument pair.
type Pair struct {
	Slug      string
	Question  string
	UpToken   string
	DownToken string
	Outcomes  []string
	// FromSlug is false when the active-market search was used.
	FromSlug bool
}

// ResolveActivePair looks up the current hourly market by slug and falls back
// to scanning active markets for a bitcoin up/down question.
func (c *Client) ResolveActivePair(ctx context.Context) (Pair, error) {
	if c == nil {
		return Pair{}, fmt.Errorf("gamma client nil")
	}
	slug := HourlySlug(c.now())
	ms, err := c.markets(ctx, url.Values{"slug": []string{slug}})
	if err != nil {
		return Pair{}, err
	}
	if len(ms) > 0 {
		p, err := pairFromMarket(ms[0])
		if err != nil {
			return Pair{}, fmt.Errorf("gamma market %q: %w", slug, err)
		}
		p.FromSlug = true
		return p, nil
	}

	ms, err = c.markets(ctx, url.Values{
		"active": []string{"true"},
		"closed": []string{"false"},
		"limit":  []string{"50"},
	})
	if err != nil {
		return Pair{}, err
	}
	// Hourly-shaped slugs win over other bitcoin up/down windows.
	var pick *market
	for i := range ms {
		if !isBitcoinUpDown(ms[i].Question) {
			continue
		}
		if isHourlySlug(ms[i].Slug) {
			pick = &ms[i]
			break
		}
		if pick == nil {
			pick = &ms[i]
		}
	}
	if pick == nil {
		return Pair{}, fmt.Errorf("%w (slug %s)", ErrNoMarket, slug)
	}
	p, err := pairFromMarket(*pick)
	if err != nil {
		return Pair{}, fmt.Errorf("gamma market %q: %w", pick.Slug, err)
	}
	return p, nil
}

func (c *Client) markets(ctx context.Context, q url.Values) (marketList, error) {
	endpoint := c.host + "/markets?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyLimit(resp.Body, 8<<10)
		return nil, fmt.Errorf("gamma %s: status=%d body=%q", endpoint, resp.StatusCode, body)
	}
	var ms marketList
	if err := json.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("gamma decode: %w", err)
	}
	return ms, nil
}

func isBitcoinUpDown(question string) bool {
	q := strings.ToLower(question)
	return (strings.Contains(q, "bitcoin") || strings.Contains(q, "btc")) &&
		strings.Contains(q, "up") && strings.Contains(q, "down")
}

// pairFromMarket maps outcome names to tokens: "up"/"yes" is UP, "down"/"no"
// is DOWN, defaulting to positions 0 and 1.
func pairFromMarket(m market) (Pair, error) {
	ids := make([]string, 0, len(m.ClobTokenIDs))
	for _, id := range m.ClobTokenIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		return Pair{}, fmt.Errorf("expected 2 clobTokenIds, got %d", len(ids))
	}
	up, down := outcomeIndex(m.Outcomes, "up", "yes"), outcomeIndex(m.Outcomes, "down", "no")
	if up < 0 || up >= len(ids) {
		up = 0
	}
	if down < 0 || down >= len(ids) {
		down = 1
	}
	if up == down {
		return Pair{}, fmt.Errorf("outcomes %v map both sides to index %d", []string(m.Outcomes), up)
	}
	return Pair{
		Slug:      m.Slug,
		Question:  m.Question,
		UpToken:   ids[up],
		DownToken: ids[down],
		Outcomes:  append([]string(nil), m.Outcomes...),
	}, nil
}

func outcomeIndex(outcomes []string, names ...string) int {
	for i, o := range outcomes {
		o = strings.ToLower(strings.TrimSpace(o))
		for _, n := range names {
			if strings.Contains(o, n) {
				return i
			}
		}
	}
	return -1
}

func readBodyLimit(r io.Reader, max int64) string {
	if r == nil || max <= 0 {
		return ""
	}
	lr := &io.LimitedReader{R: r, N: max}
	b, _ := io.ReadAll(lr)
	return strings.TrimSpace(string(b))
}
