package clob

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Wallet auth (L1) signs a ClobAuth typed message with the private key and is
// only accepted by the api-key endpoints. Request auth (L2) signs every
// trading call with the HMAC secret of the issued credentials.

const clobAuthAttestation = "This message attests that I control the given wallet"

var errNoCreds = errors.New("api creds not set")

func (c *Client) authTimestamp(ctx context.Context) (int64, error) {
	if !c.useServerTime {
		return time.Now().Unix(), nil
	}
	return c.GetServerTime(ctx)
}

func (c *Client) walletAuth(timestamp int64, nonce uint64) (http.Header, error) {
	digest, err := clobAuthDigest(c.signer, c.chainID, timestamp, nonce)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest, c.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign clob auth: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	h := authHeader(c.signer, hexutil.Encode(sig), timestamp)
	h.Set("POLY_NONCE", strconv.FormatUint(nonce, 10))
	return h, nil
}

func (c *Client) requestAuth(timestamp int64, method, path string, body []byte) (http.Header, error) {
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()
	if creds == nil {
		return nil, errNoCreds
	}
	sig, err := creds.sign(timestamp, method, path, body)
	if err != nil {
		return nil, err
	}
	h := authHeader(c.signer, sig, timestamp)
	h.Set("POLY_API_KEY", creds.Key)
	h.Set("POLY_PASSPHRASE", creds.Passphrase)
	return h, nil
}

func authHeader(signer common.Address, sig string, timestamp int64) http.Header {
	h := make(http.Header)
	h.Set("POLY_ADDRESS", signer.Hex())
	h.Set("POLY_SIGNATURE", sig)
	h.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	return h
}

func clobAuthTypedData(signer common.Address, chainID, timestamp int64, nonce uint64) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(chainID),
		},
		Message: apitypes.TypedDataMessage{
			"address":   signer.Hex(),
			"timestamp": strconv.FormatInt(timestamp, 10),
			"nonce":     strconv.FormatUint(nonce, 10),
			"message":   clobAuthAttestation,
		},
	}
}

func clobAuthDigest(signer common.Address, chainID, timestamp int64, nonce uint64) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(clobAuthTypedData(signer, chainID, timestamp, nonce))
	if err != nil {
		return nil, fmt.Errorf("hash clob auth: %w", err)
	}
	return digest, nil
}

// sign returns the url-safe, padded HMAC-SHA256 of timestamp+method+path+body.
func (k ApiKeyCreds) sign(timestamp int64, method, path string, body []byte) (string, error) {
	key, err := decodeSecret(k.Secret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// decodeSecret accepts standard or url-safe base64, padded or not. Characters
// outside both alphabets are dropped.
func decodeSecret(secret string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == '+':
			return '-'
		case r == '/':
			return '_'
		}
		return -1
	}, secret)
	key, err := base64.RawURLEncoding.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decode api secret: %w", err)
	}
	return key, nil
}
