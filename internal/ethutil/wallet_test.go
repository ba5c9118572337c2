package ethutil

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestParsePrivateKey(t *testing.T) {
	plain, err := ParsePrivateKey(testKey)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	prefixed, err := ParsePrivateKey("  0x" + testKey + "\n")
	if err != nil {
		t.Fatalf("ParsePrivateKey(0x): %v", err)
	}
	if crypto.PubkeyToAddress(plain.PublicKey) != crypto.PubkeyToAddress(prefixed.PublicKey) {
		t.Fatalf("prefix changed the key")
	}

	if _, err := ParsePrivateKey(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := ParsePrivateKey("zz"); err == nil {
		t.Fatalf("expected error for non-hex key")
	}
}

func TestResolveOwner(t *testing.T) {
	pk, err := ParsePrivateKey(testKey)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	signer := crypto.PubkeyToAddress(pk.PublicKey)
	funder := "0x00000000000000000000000000000000000000f1"
	explicit := "0x00000000000000000000000000000000000000e1"

	tests := []struct {
		name               string
		explicit, fund, pk string
		want               common.Address
		src                string
	}{
		{"explicit wins", explicit, funder, testKey, common.HexToAddress(explicit), "address"},
		{"funder over signer", "", funder, testKey, common.HexToAddress(funder), "funder"},
		{"signer fallback", "", "", testKey, signer, "signer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, src, err := ResolveOwner(tt.explicit, tt.fund, tt.pk)
			if err != nil {
				t.Fatalf("ResolveOwner: %v", err)
			}
			if got != tt.want || src != tt.src {
				t.Fatalf("got %s (%s), want %s (%s)", got.Hex(), src, tt.want.Hex(), tt.src)
			}
		})
	}

	if _, _, err := ResolveOwner("", "", ""); err == nil {
		t.Fatalf("expected error with no wallet material")
	}
	if _, _, err := ResolveOwner("", "not-an-address", testKey); err == nil {
		t.Fatalf("expected error for invalid funder")
	}
}
