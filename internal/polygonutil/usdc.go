package polygonutil

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

const (
	USDCTokenDecimals = 6
	NativeDecimals    = 18
)

// DefaultRPCURL is the public Polygon endpoint used when none is configured.
const DefaultRPCURL = "https://polygon-rpc.com"

var USDCTokenAddress = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")

var erc20BalanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]

func uint64FromUint256Saturating(x *big.Int) uint64 {
	if x == nil {
		return 0
	}
	if x.Sign() <= 0 {
		return 0
	}
	if x.IsUint64() {
		return x.Uint64()
	}
	return math.MaxUint64
}

// RPCURLFromEnv returns the configured Polygon RPC URL or DefaultRPCURL.
func RPCURLFromEnv() (string, error) {
	rpcURL := strings.TrimSpace(firstNonEmpty(os.Getenv("RPC_URL"), os.Getenv("POLYGON_RPC_URL"), os.Getenv("RPC_WS_URL")))
	if rpcURL == "" {
		return DefaultRPCURL, nil
	}
	return ValidateRPCURL(rpcURL)
}

func ValidateRPCURL(rpcURL string) (string, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if !strings.HasPrefix(rpcURL, "wss") && !strings.HasPrefix(rpcURL, "http") {
		return "", fmt.Errorf("polygon RPC URL must be wss://... or http(s)://..., got %q", rpcURL)
	}
	if strings.Contains(rpcURL, "YOUR_KEY") {
		return "", fmt.Errorf("polygon RPC URL still contains placeholder YOUR_KEY. Set RPC_URL to your provider URL")
	}
	return rpcURL, nil
}

// Reader reads wallet balances over a single RPC connection.
type Reader struct {
	client *ethclient.Client
}

func Dial(ctx context.Context, rpcURL string) (*Reader, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return nil, fmt.Errorf("polygon RPC URL missing")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial polygon RPC: %w", err)
	}
	return &Reader{client: client}, nil
}

func (r *Reader) Close() {
	if r != nil && r.client != nil {
		r.client.Close()
	}
}

// USDCBalanceMicros returns the owner's USDC balance in 1e-6 units.
func (r *Reader) USDCBalanceMicros(ctx context.Context, owner common.Address) (uint64, error) {
	if (owner == common.Address{}) {
		return 0, fmt.Errorf("owner address missing")
	}
	out, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &USDCTokenAddress, Data: balanceOfCalldata(owner)}, nil)
	if err != nil {
		return 0, fmt.Errorf("usdc balanceOf(%s): %w", owner.Hex(), err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("usdc balanceOf returned empty result")
	}
	return uint64FromUint256Saturating(new(big.Int).SetBytes(out)), nil
}

// NativeBalanceWei returns the owner's gas-token (MATIC/POL) balance in wei.
func (r *Reader) NativeBalanceWei(ctx context.Context, owner common.Address) (*big.Int, error) {
	if (owner == common.Address{}) {
		return nil, fmt.Errorf("owner address missing")
	}
	bal, err := r.client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("native balance(%s): %w", owner.Hex(), err)
	}
	return bal, nil
}

func balanceOfCalldata(owner common.Address) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, erc20BalanceOfSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	return data
}

// MicrosToDecimal converts 1e-6 token units to a decimal amount.
func MicrosToDecimal(m uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(m), -USDCTokenDecimals)
}

// WeiToDecimal converts 1e-18 native units to a decimal amount.
func WeiToDecimal(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -NativeDecimals)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
