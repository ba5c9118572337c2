// Package ethutil parses wallet material from configuration strings.
package ethutil

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ParsePrivateKey accepts a hex key with or without the 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, fmt.Errorf("private key missing")
	}
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return pk, nil
}

// ParseOptionalAddress returns the zero address for a blank string.
func ParseOptionalAddress(name, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

// ResolveOwner picks the wallet whose balances matter: an explicit address,
// then the funder (proxy wallets hold the funds), then the signer of pkHex.
// The second return names the source for logging.
func ResolveOwner(explicit, funder, pkHex string) (common.Address, string, error) {
	if addr, err := ParseOptionalAddress("address", explicit); err != nil {
		return common.Address{}, "", err
	} else if addr != (common.Address{}) {
		return addr, "address", nil
	}
	if addr, err := ParseOptionalAddress("funder", funder); err != nil {
		return common.Address{}, "", err
	} else if addr != (common.Address{}) {
		return addr, "funder", nil
	}
	if strings.TrimSpace(pkHex) != "" {
		pk, err := ParsePrivateKey(pkHex)
		if err != nil {
			return common.Address{}, "", err
		}
		return crypto.PubkeyToAddress(pk.PublicKey), "signer", nil
	}
	return common.Address{}, "", fmt.Errorf("wallet required: set FUNDER/CLOB_FUNDER or PRIVATE_KEY/CLOB_PRIVATE_KEY")
}
