package clob

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	orderbuilder "github.com/polymarket/go-order-utils/pkg/builder"
	ordermodel "github.com/polymarket/go-order-utils/pkg/model"
	"github.com/shopspring/decimal"
)

const zeroAddressHex = "0x0000000000000000000000000000000000000000"

// OrderArgs describes a limit order in human units.
type OrderArgs struct {
	TokenID string
	Price   decimal.Decimal
	Size    decimal.Decimal // shares
	Side    Side
}

// TickConfig carries market parameters that would otherwise be looked up.
type TickConfig struct {
	TickSize string
	NegRisk  bool
}

// PostOrderResult is the venue's acknowledgement of a new order.
type PostOrderResult struct {
	OrderID string
	Status  string
	Raw     map[string]any
}

type signedOrderPayload struct {
	DeferExec bool      `json:"deferExec"`
	Order     orderJSON `json:"order"`
	Owner     string    `json:"owner"`
	OrderType OrderType `json:"orderType"`
}

type orderJSON struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          Side   `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

// CreateAndPostOrder signs a limit order and submits it.
func (c *Client) CreateAndPostOrder(ctx context.Context, args OrderArgs, tick TickConfig, orderType OrderType) (PostOrderResult, error) {
	signed, err := c.CreateSignedLimitOrder(ctx, args, tick)
	if err != nil {
		return PostOrderResult{}, err
	}
	resp, err := c.PostSignedOrder(ctx, signed, orderType)
	if err != nil {
		return PostOrderResult{}, err
	}
	if msg := errorMsgFromResp(resp); msg != "" {
		return PostOrderResult{Raw: resp}, fmt.Errorf("order rejected: %s", msg)
	}
	id := orderIDFromResp(resp)
	if id == "" {
		return PostOrderResult{Raw: resp}, fmt.Errorf("order id missing in response")
	}
	status, _ := resp["status"].(string)
	return PostOrderResult{OrderID: id, Status: status, Raw: resp}, nil
}

// CreateSignedLimitOrder builds and signs a limit order. An empty tick size is
// looked up from the venue.
func (c *Client) CreateSignedLimitOrder(ctx context.Context, args OrderArgs, tick TickConfig) (*ordermodel.SignedOrder, error) {
	if strings.TrimSpace(args.TokenID) == "" {
		return nil, fmt.Errorf("token id required")
	}
	tickSize := strings.TrimSpace(tick.TickSize)
	if tickSize == "" {
		ts, err := c.GetTickSize(ctx, args.TokenID)
		if err != nil {
			return nil, err
		}
		tickSize = ts
	}
	rc, err := roundingConfigFor(tickSize)
	if err != nil {
		return nil, err
	}
	if !validPrice(args.Price, tickSize) {
		return nil, fmt.Errorf("price %s outside [%s, 1-%s]", args.Price, tickSize, tickSize)
	}
	maker, taker, _, err := limitOrderAmounts(args.Side, args.Price, args.Size, rc)
	if err != nil {
		return nil, err
	}

	var sideEnum ordermodel.Side
	switch args.Side {
	case SideBuy:
		sideEnum = ordermodel.BUY
	case SideSell:
		sideEnum = ordermodel.SELL
	default:
		return nil, fmt.Errorf("invalid side %q", args.Side)
	}

	feeBps, err := c.GetFeeRateBps(ctx, args.TokenID)
	if err != nil {
		return nil, err
	}

	contract := ordermodel.CTFExchange
	if tick.NegRisk {
		contract = ordermodel.NegRiskCTFExchange
	}

	od := &ordermodel.OrderData{
		Maker:         c.funder.Hex(),
		Taker:         zeroAddressHex,
		TokenId:       args.TokenID,
		MakerAmount:   maker.String(),
		TakerAmount:   taker.String(),
		FeeRateBps:    strconv.Itoa(feeBps),
		Nonce:         "0",
		Signer:        c.signer.Hex(),
		Expiration:    "0",
		Side:          sideEnum,
		SignatureType: ordermodel.SignatureType(c.signatureTy),
	}
	return signOrder(c.chainID, c.privateKey, od, contract, c.saltGen)
}

func signOrder(chainID int64, pk *ecdsa.PrivateKey, od *ordermodel.OrderData, contract ordermodel.VerifyingContract, saltGen func() int64) (*ordermodel.SignedOrder, error) {
	b := orderbuilder.NewExchangeOrderBuilderImpl(big.NewInt(chainID), saltGen)
	return b.BuildSignedOrder(pk, od, contract)
}

func (c *Client) PostSignedOrder(ctx context.Context, order *ordermodel.SignedOrder, orderType OrderType) (map[string]any, error) {
	body, err := c.BuildPostOrderBody(order, orderType)
	if err != nil {
		return nil, err
	}
	ts, err := c.authTimestamp(ctx)
	if err != nil {
		return nil, err
	}
	headers, err := c.requestAuth(ts, http.MethodPost, "/order", body)
	if err != nil {
		return nil, err
	}
	var resp map[string]any
	if err := c.doJSON(ctx, http.MethodPost, "/order", nil, headers, body, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) BuildPostOrderBody(order *ordermodel.SignedOrder, orderType OrderType) ([]byte, error) {
	if order == nil {
		return nil, fmt.Errorf("order required")
	}
	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()

	owner := ""
	if creds != nil {
		owner = creds.Key
	}

	payload := signedOrderPayload{
		Owner:     owner,
		OrderType: orderType,
		Order: orderJSON{
			Salt:          order.Salt.Int64(),
			Maker:         order.Maker.Hex(),
			Signer:        order.Signer.Hex(),
			Taker:         order.Taker.Hex(),
			TokenID:       order.TokenId.String(),
			MakerAmount:   order.MakerAmount.String(),
			TakerAmount:   order.TakerAmount.String(),
			Expiration:    order.Expiration.String(),
			Nonce:         order.Nonce.String(),
			FeeRateBps:    order.FeeRateBps.String(),
			Side:          sideToString(order.Side),
			SignatureType: int(order.SignatureType.Int64()),
			Signature:     "0x" + fmt.Sprintf("%x", order.Signature),
		},
	}
	return json.Marshal(payload)
}

func sideToString(v *big.Int) Side {
	if v == nil {
		return SideBuy
	}
	if v.Int64() == int64(ordermodel.SELL) {
		return SideSell
	}
	return SideBuy
}

func orderIDFromResp(resp map[string]any) string {
	for _, k := range []string{"orderID", "orderId", "order_id"} {
		if s, ok := resp[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func errorMsgFromResp(resp map[string]any) string {
	if s, ok := resp["errorMsg"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if ok, present := resp["success"].(bool); present && !ok {
		return "success=false"
	}
	return ""
}
