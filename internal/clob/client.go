package clob

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const DefaultHost = "https://clob.polymarket.com"

// PolygonChainID is the chain the CTF exchange lives on.
const PolygonChainID = 137

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderTypeGTC OrderType = "GTC"
	OrderTypeFOK OrderType = "FOK"
	OrderTypeGTD OrderType = "GTD"
	OrderTypeFAK OrderType = "FAK"
)

type ApiKeyCreds struct {
	Key        string `json:"key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type apiKeyRaw struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

type decimalString string

func (d *decimalString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*d = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = decimalString(canonicalDecimalString(s))
		return nil
	}
	*d = decimalString(canonicalDecimalString(string(b)))
	return nil
}

func canonicalDecimalString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	if strings.Contains(s, ".") {
		parts := strings.SplitN(s, ".", 2)
		whole := parts[0]
		frac := strings.TrimRight(parts[1], "0")
		if frac == "" {
			return whole
		}
		return whole + "." + frac
	}
	return s
}

type tickSizeResp struct {
	MinimumTickSize decimalString `json:"minimum_tick_size"`
}

type feeRateResp struct {
	BaseFee int `json:"base_fee"`
}

type priceResp struct {
	Price decimalString `json:"price"`
}

type Client struct {
	host        string
	httpClient  *http.Client
	limiter     *rate.Limiter
	chainID     int64
	privateKey  *ecdsa.PrivateKey
	signer      common.Address
	funder      common.Address
	signatureTy int // 0=EOA, 1=POLY_PROXY, 2=POLY_GNOSIS_SAFE

	useServerTime bool
	saltGen       func() int64

	mu       sync.RWMutex
	creds    *ApiKeyCreds
	tickSize map[string]string
	feeRate  map[string]int
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit paces every request. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithServerTime stamps wallet and request auth with the CLOB server clock.
func WithServerTime(v bool) Option {
	return func(c *Client) { c.useServerTime = v }
}

// WithSaltGenerator overrides the order salt source.
func WithSaltGenerator(gen func() int64) Option {
	return func(c *Client) {
		if gen != nil {
			c.saltGen = gen
		}
	}
}

func NewClient(host string, chainID int64, privateKey *ecdsa.PrivateKey, funder common.Address, signatureType int, opts ...Option) (*Client, error) {
	if host == "" {
		host = DefaultHost
	}
	host = strings.TrimRight(host, "/")
	if !strings.HasPrefix(host, "http") {
		return nil, fmt.Errorf("clob host must be http(s), got %q", host)
	}
	if privateKey == nil {
		return nil, fmt.Errorf("private key required")
	}
	signer := crypto.PubkeyToAddress(privateKey.PublicKey)
	if (funder == common.Address{}) {
		funder = signer
	}

	c := &Client{
		host:        host,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(10, 5),
		chainID:     chainID,
		privateKey:  privateKey,
		signer:      signer,
		funder:      funder,
		signatureTy: signatureType,
		saltGen:     defaultSalt,
		tickSize:    make(map[string]string),
		feeRate:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func defaultSalt() int64 { return time.Now().UnixNano() & 0x7fffffffffff }

func (c *Client) Host() string                  { return c.host }
func (c *Client) SignerAddress() common.Address { return c.signer }
func (c *Client) FunderAddress() common.Address { return c.funder }
func (c *Client) ChainID() int64                { return c.chainID }

func (c *Client) SetApiCreds(creds ApiKeyCreds) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = &creds
}

func (c *Client) HasApiCreds() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds != nil && c.creds.Key != "" && c.creds.Secret != "" && c.creds.Passphrase != ""
}

func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	var ts int64
	if err := c.doJSON(ctx, http.MethodGet, "/time", nil, nil, nil, &ts); err != nil {
		return 0, err
	}
	return ts, nil
}

// GetPrice returns the best price a taker on side would trade at:
// the best ask for BUY, the best bid for SELL.
func (c *Client) GetPrice(ctx context.Context, tokenID string, side Side) (decimal.Decimal, error) {
	if strings.TrimSpace(tokenID) == "" {
		return decimal.Zero, fmt.Errorf("token id required")
	}
	if side != SideBuy && side != SideSell {
		return decimal.Zero, fmt.Errorf("invalid side %q", side)
	}
	params := url.Values{"token_id": []string{tokenID}, "side": []string{string(side)}}
	var resp priceResp
	if err := c.doJSON(ctx, http.MethodGet, "/price", params, nil, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	p, err := decimal.NewFromString(string(resp.Price))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", resp.Price, err)
	}
	if !p.IsPositive() {
		return decimal.Zero, fmt.Errorf("no %s price for %s", side, tokenID)
	}
	return p, nil
}

func (c *Client) GetTickSize(ctx context.Context, tokenID string) (string, error) {
	c.mu.RLock()
	if v, ok := c.tickSize[tokenID]; ok && v != "" {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	params := url.Values{"token_id": []string{tokenID}}
	var resp tickSizeResp
	if err := c.doJSON(ctx, http.MethodGet, "/tick-size", params, nil, nil, &resp); err != nil {
		return "", err
	}
	tickSize := string(resp.MinimumTickSize)
	if tickSize == "" {
		return "", fmt.Errorf("tick size missing in response")
	}

	c.mu.Lock()
	c.tickSize[tokenID] = tickSize
	c.mu.Unlock()
	return tickSize, nil
}

func (c *Client) GetFeeRateBps(ctx context.Context, tokenID string) (int, error) {
	c.mu.RLock()
	if v, ok := c.feeRate[tokenID]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	params := url.Values{"token_id": []string{tokenID}}
	var resp feeRateResp
	if err := c.doJSON(ctx, http.MethodGet, "/fee-rate", params, nil, nil, &resp); err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.feeRate[tokenID] = resp.BaseFee
	c.mu.Unlock()
	return resp.BaseFee, nil
}

func (c *Client) CreateOrDeriveApiKey(ctx context.Context, nonce uint64) (ApiKeyCreds, error) {
	// Derive first to avoid NONCE_ALREADY_USED failures on create.
	if creds, err := c.DeriveApiKey(ctx, nonce); err == nil && creds.Key != "" {
		return creds, nil
	}
	return c.CreateApiKey(ctx, nonce)
}

func (c *Client) CreateApiKey(ctx context.Context, nonce uint64) (ApiKeyCreds, error) {
	return c.apiKeyRequest(ctx, http.MethodPost, "/auth/api-key", nonce)
}

func (c *Client) DeriveApiKey(ctx context.Context, nonce uint64) (ApiKeyCreds, error) {
	return c.apiKeyRequest(ctx, http.MethodGet, "/auth/derive-api-key", nonce)
}

func (c *Client) apiKeyRequest(ctx context.Context, method, path string, nonce uint64) (ApiKeyCreds, error) {
	ts, err := c.authTimestamp(ctx)
	if err != nil {
		return ApiKeyCreds{}, err
	}
	headers, err := c.walletAuth(ts, nonce)
	if err != nil {
		return ApiKeyCreds{}, err
	}
	var resp apiKeyRaw
	if err := c.doJSON(ctx, method, path, nil, headers, nil, &resp); err != nil {
		return ApiKeyCreds{}, err
	}
	return ApiKeyCreds{Key: resp.APIKey, Secret: resp.Secret, Passphrase: resp.Passphrase}, nil
}

// doJSON sends one paced request. A nil body sends no payload; out may be nil.
func (c *Client) doJSON(ctx context.Context, method, path string, params url.Values, headers http.Header, body []byte, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("clob %s %s: %w", method, path, err)
		}
	}

	u := c.host + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("clob %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s response: %w (body=%s)", path, err, strings.TrimSpace(string(b)))
	}
	return nil
}
