package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"poly-divergence/internal/balance"
	"poly-divergence/internal/dotenv"
	"poly-divergence/internal/ethutil"
	"poly-divergence/internal/logging"
	"poly-divergence/internal/polygonutil"
)

func main() {
	log := logging.New(os.Getenv("LOG_LEVEL"), true)

	if err := dotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("dotenv")
	}

	var addrFlag string
	var minSettlementFlag string
	var minGasFlag string
	flag.StringVar(&addrFlag, "address", "", "Wallet address to check (default: FUNDER/CLOB_FUNDER or signer from PRIVATE_KEY)")
	flag.StringVar(&minSettlementFlag, "min-usdc", "500", "Minimum USDC balance for trading")
	flag.StringVar(&minGasFlag, "min-gas", "0.05", "Minimum MATIC balance for gas")
	flag.Parse()

	minSettlement, err := decimal.NewFromString(strings.TrimSpace(minSettlementFlag))
	if err != nil {
		log.Fatal().Err(err).Str("min_usdc", minSettlementFlag).Msg("invalid --min-usdc")
	}
	minGas, err := decimal.NewFromString(strings.TrimSpace(minGasFlag))
	if err != nil {
		log.Fatal().Err(err).Str("min_gas", minGasFlag).Msg("invalid --min-gas")
	}

	rpcURL, err := polygonutil.RPCURLFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("rpc url")
	}

	owner, ownerSrc, err := ethutil.ResolveOwner(
		addrFlag,
		firstNonEmpty(os.Getenv("CLOB_FUNDER"), os.Getenv("FUNDER")),
		firstNonEmpty(os.Getenv("CLOB_PRIVATE_KEY"), os.Getenv("PRIVATE_KEY")),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve owner")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	reader, err := polygonutil.Dial(ctx, rpcURL)
	if err != nil {
		log.Fatal().Err(err).Msg("dial rpc")
	}
	defer reader.Close()

	b, err := balance.NewService(reader, owner).CheckBalances(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("owner", owner.Hex()).Msg("balance lookup")
	}
	suff := balance.CheckSufficientBalance(b, minSettlement, minGas)

	fmt.Printf("owner: %s (%s)\n", owner.Hex(), ownerSrc)
	fmt.Printf("usdc_balance: %s\n", b.Settlement.String())
	fmt.Printf("matic_balance: %s\n", b.Gas.StringFixed(6))
	fmt.Printf("sufficient: %v (min_usdc=%s min_gas=%s)\n", suff.Sufficient, minSettlement, minGas)
	for _, w := range suff.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if !suff.Sufficient {
		os.Exit(1)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
