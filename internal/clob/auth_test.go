package clob

import (
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestApiKeyCredsSign(t *testing.T) {
	const want = "ZwAdJKvoYRlEKDkNMwd5BuwNNtg93kNaR_oU2HrfVvc="
	tests := []struct {
		name   string
		secret string
	}{
		{"standard padded", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="},
		{"unpadded", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"},
		{"stray symbols", "AAAAAAAAA^^AAAAAAAA<>AAAAA||AAAAAAAAAAAAAAAAAAAAA=\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := ApiKeyCreds{Secret: tt.secret}.sign(1000000, "test-sign", "/orders", []byte(`{"hash": "0x123"}`))
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if sig != want {
				t.Fatalf("signature mismatch: got %q want %q", sig, want)
			}
		})
	}
}

func TestApiKeyCredsSign_UrlAlphabetMatchesStandard(t *testing.T) {
	body := []byte(`{"hash": "0x123"}`)
	std, err := ApiKeyCreds{Secret: "++/AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="}.sign(1000000, "test-sign", "/orders", body)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	url, err := ApiKeyCreds{Secret: "--_AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}.sign(1000000, "test-sign", "/orders", body)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if std != url {
		t.Fatalf("alphabets disagree: %q vs %q", std, url)
	}
}

func TestApiKeyCredsSign_RejectsTruncatedSecret(t *testing.T) {
	if _, err := (ApiKeyCreds{Secret: "AAAAA"}).sign(1, "GET", "/", nil); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestClobAuthDigest_MatchesTypedDataEncoding(t *testing.T) {
	signer := common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")
	const ts, nonce = int64(1700000000), uint64(3)

	word := func(v int64) []byte { return math.U256Bytes(big.NewInt(v)) }
	cat := func(parts ...[]byte) []byte {
		var out []byte
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}
	domain := crypto.Keccak256(cat(
		crypto.Keccak256([]byte("EIP712Domain(string name,string version,uint256 chainId)")),
		crypto.Keccak256([]byte("ClobAuthDomain")),
		crypto.Keccak256([]byte("1")),
		word(PolygonChainID),
	))
	message := crypto.Keccak256(cat(
		crypto.Keccak256([]byte("ClobAuth(address address,string timestamp,uint256 nonce,string message)")),
		common.LeftPadBytes(signer.Bytes(), 32),
		crypto.Keccak256([]byte("1700000000")),
		word(int64(nonce)),
		crypto.Keccak256([]byte(clobAuthAttestation)),
	))
	want := crypto.Keccak256(cat([]byte{0x19, 0x01}, domain, message))

	got, err := clobAuthDigest(signer, PolygonChainID, ts, nonce)
	if err != nil {
		t.Fatalf("clobAuthDigest: %v", err)
	}
	if hexutil.Encode(got) != hexutil.Encode(want) {
		t.Fatalf("digest mismatch: got %x want %x", got, want)
	}
}

func TestWalletAuth_SignatureRecoversSigner(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := newTestClient(t, srv)

	h, err := c.walletAuth(1700000000, 7)
	if err != nil {
		t.Fatalf("walletAuth: %v", err)
	}
	if h.Get("POLY_ADDRESS") != c.SignerAddress().Hex() || h.Get("POLY_TIMESTAMP") != "1700000000" || h.Get("POLY_NONCE") != "7" {
		t.Fatalf("headers=%v", h)
	}
	if h.Get("POLY_API_KEY") != "" {
		t.Fatalf("wallet auth must not carry api key: %v", h)
	}

	sig, err := hexutil.Decode(h.Get("POLY_SIGNATURE"))
	if err != nil || len(sig) != 65 {
		t.Fatalf("signature=%q err=%v", h.Get("POLY_SIGNATURE"), err)
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("v=%d", sig[64])
	}
	sig[64] -= 27
	digest, err := clobAuthDigest(c.SignerAddress(), PolygonChainID, 1700000000, 7)
	if err != nil {
		t.Fatalf("clobAuthDigest: %v", err)
	}
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		t.Fatalf("SigToPub: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != c.SignerAddress() {
		t.Fatalf("recovered %s want %s", crypto.PubkeyToAddress(*pub).Hex(), c.SignerAddress().Hex())
	}
}

func TestRequestAuth(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	c := newTestClient(t, srv)

	body := []byte(`{"hash": "0x123"}`)
	h, err := c.requestAuth(1000000, "test-sign", "/orders", body)
	if err != nil {
		t.Fatalf("requestAuth: %v", err)
	}
	if got, want := h.Get("POLY_SIGNATURE"), "ZwAdJKvoYRlEKDkNMwd5BuwNNtg93kNaR_oU2HrfVvc="; got != want {
		t.Fatalf("signature mismatch: got %q want %q", got, want)
	}
	if h.Get("POLY_API_KEY") != "key" || h.Get("POLY_PASSPHRASE") != "pass" || h.Get("POLY_TIMESTAMP") != "1000000" {
		t.Fatalf("headers=%v", h)
	}

	bare, err := NewClient(srv.URL, PolygonChainID, c.privateKey, common.Address{}, 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := bare.requestAuth(1, "GET", "/", nil); !errors.Is(err, errNoCreds) {
		t.Fatalf("expected errNoCreds, got %v", err)
	}
}

func TestWithServerTime_SignsWithVenueClock(t *testing.T) {
	var stamped string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/time":
			_, _ = io.WriteString(w, `1700000123`)
		case "/auth/derive-api-key":
			stamped = r.Header.Get("POLY_TIMESTAMP")
			_, _ = io.WriteString(w, `{"apiKey":"k","secret":"s","passphrase":"p"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	c, err := NewClient(srv.URL, PolygonChainID, pk, common.Address{}, 0, WithServerTime(true))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.DeriveApiKey(context.Background(), 0); err != nil {
		t.Fatalf("DeriveApiKey: %v", err)
	}
	if stamped != "1700000123" {
		t.Fatalf("POLY_TIMESTAMP=%q want server time", stamped)
	}
}
