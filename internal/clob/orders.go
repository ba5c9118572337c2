package clob

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalized order states reported by OrderInfo.Fill.
const (
	StatusFilled          = "FILLED"
	StatusPartiallyFilled = "PARTIALLY_FILLED"
	StatusOpen            = "OPEN"
	StatusCancelled       = "CANCELLED"
)

// OrderInfo mirrors the /data/order/<order_hash> response payload.
type OrderInfo struct {
	ID               string        `json:"id"`
	Status           string        `json:"status"`
	Market           string        `json:"market"`
	AssetID          string        `json:"asset_id"`
	Side             string        `json:"side"`
	Price            decimalString `json:"price"`
	OriginalSize     decimalString `json:"original_size"`
	SizeMatched      decimalString `json:"size_matched"`
	AssociatedTrades []string      `json:"associate_trades"`
	OrderType        string        `json:"order_type"`
}

type orderInfoResp struct {
	Order *OrderInfo `json:"order"`
}

// OrderStatus is the fill view the executor needs. AvgFillPrice and
// FilledSize are zero unless something matched.
type OrderStatus struct {
	Status       string
	AvgFillPrice decimal.Decimal
	FilledSize   decimal.Decimal
}

// Filled reports FILLED or PARTIALLY_FILLED with usable numbers.
func (s OrderStatus) Filled() bool {
	return (s.Status == StatusFilled || s.Status == StatusPartiallyFilled) &&
		s.AvgFillPrice.IsPositive() && s.FilledSize.IsPositive()
}

// Fill maps the venue's order view to OrderStatus. Limit orders match at
// their own price or better, so the order price stands in for the average.
func (o *OrderInfo) Fill() OrderStatus {
	if o == nil {
		return OrderStatus{}
	}
	matched := decimalOrZero(o.SizeMatched)
	original := decimalOrZero(o.OriginalSize)
	price := decimalOrZero(o.Price)
	raw := strings.ToUpper(strings.TrimSpace(o.Status))

	out := OrderStatus{Status: raw}
	switch {
	case raw == "MATCHED" || raw == StatusFilled || (matched.IsPositive() && original.IsPositive() && matched.GreaterThanOrEqual(original)):
		out.Status = StatusFilled
	case matched.IsPositive():
		out.Status = StatusPartiallyFilled
	case raw == "LIVE" || raw == "":
		out.Status = StatusOpen
	case strings.HasPrefix(raw, "CANCEL"):
		out.Status = StatusCancelled
	}
	if out.Status == StatusFilled && !matched.IsPositive() {
		matched = original
	}
	if matched.IsPositive() {
		out.FilledSize = matched
		out.AvgFillPrice = price
	}
	return out
}

func decimalOrZero(s decimalString) decimal.Decimal {
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// GetOrderInfo fetches a single order by ID/hash.
func (c *Client) GetOrderInfo(ctx context.Context, orderID string) (*OrderInfo, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("order id required")
	}
	if !c.HasApiCreds() {
		return nil, fmt.Errorf("api creds not configured")
	}

	path := "/data/order/" + orderID
	ts, err := c.authTimestamp(ctx)
	if err != nil {
		return nil, err
	}
	headers, err := c.requestAuth(ts, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp orderInfoResp
	if err := c.doJSON(ctx, http.MethodGet, path, nil, headers, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("order missing in response")
	}
	return resp.Order, nil
}

// GetOrder returns the normalized fill state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (OrderStatus, error) {
	info, err := c.GetOrderInfo(ctx, orderID)
	if err != nil {
		return OrderStatus{}, err
	}
	return info.Fill(), nil
}
