package book

import (
	"fmt"
	"math"
)

// Price is a signed tick price. Quantity is a unit volume. OrderId is
// assigned by the caller; uniqueness across the book's lifetime is the
// caller's responsibility.
type (
	Price    int32
	Quantity uint32
	OrderId  uint64
)

// InvalidPrice marks a price that has not yet been assigned. A freshly
// constructed Market order carries this sentinel until the policy layer
// rewrites it to a resting limit price.
const InvalidPrice Price = math.MinInt32

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

// OrderType is the closed set of order lifetimes/policies the book accepts.
type OrderType int

const (
	GoodTillCancel OrderType = iota
	FillAndKill
	FillOrKill
	GoodForDay
	Market
)

func (t OrderType) String() string {
	switch t {
	case GoodTillCancel:
		return "GoodTillCancel"
	case FillAndKill:
		return "FillAndKill"
	case FillOrKill:
		return "FillOrKill"
	case GoodForDay:
		return "GoodForDay"
	case Market:
		return "Market"
	default:
		return fmt.Sprintf("OrderType(%d)", int(t))
	}
}

// Order is the book's resting unit of work. The book exclusively owns
// resting orders; a Trade only ever copies their identifiers, prices, and
// quantities by value.
type Order struct {
	orderType         OrderType
	orderId           OrderId
	side              Side
	price             Price
	initialQuantity   Quantity
	remainingQuantity Quantity
}

// NewOrder constructs a limit-priced order of the given type.
func NewOrder(orderType OrderType, orderId OrderId, side Side, price Price, quantity Quantity) *Order {
	return &Order{
		orderType:         orderType,
		orderId:           orderId,
		side:              side,
		price:             price,
		initialQuantity:   quantity,
		remainingQuantity: quantity,
	}
}

// NewMarketOrder constructs a Market order. Its price is undefined
// (InvalidPrice) until the order-type policy layer rewrites it.
func NewMarketOrder(orderId OrderId, side Side, quantity Quantity) *Order {
	return NewOrder(Market, orderId, side, InvalidPrice, quantity)
}

func (o *Order) OrderId() OrderId               { return o.orderId }
func (o *Order) Side() Side                     { return o.side }
func (o *Order) Price() Price                   { return o.price }
func (o *Order) OrderType() OrderType           { return o.orderType }
func (o *Order) InitialQuantity() Quantity      { return o.initialQuantity }
func (o *Order) RemainingQuantity() Quantity    { return o.remainingQuantity }
func (o *Order) FilledQuantity() Quantity       { return o.initialQuantity - o.remainingQuantity }
func (o *Order) IsFilled() bool                 { return o.remainingQuantity == 0 }

// fill decrements the order's remaining quantity. Over-filling an order is
// an invariant violation: a programming defect in the matching engine, not
// a user-input condition, so it panics rather than returning an error.
func (o *Order) fill(quantity Quantity) {
	if quantity > o.remainingQuantity {
		panic(fmt.Sprintf(
			"matchbook: cannot fill order (%d) for more than its remaining quantity (%d)",
			o.orderId, o.remainingQuantity,
		))
	}
	o.remainingQuantity -= quantity
}

// toGoodTillCancel rewrites a Market order into a resting GoodTillCancel
// limit order at the given price. Rewriting any other order type is an
// invariant violation.
func (o *Order) toGoodTillCancel(price Price) {
	if o.orderType != Market {
		panic(fmt.Sprintf(
			"matchbook: cannot rewrite price of order (%d): price rewrites are only allowed for market orders",
			o.orderId,
		))
	}
	o.price = price
	o.orderType = GoodTillCancel
}

func (o *Order) String() string {
	return fmt.Sprintf(
		"Order{id: %d, side: %s, type: %s, price: %d, qty: %d/%d}",
		o.orderId, o.side, o.orderType, o.price, o.remainingQuantity, o.initialQuantity,
	)
}

// TradeInfo is one side's half of a Trade: the resting order's id, its own
// resting price, and the quantity exchanged.
type TradeInfo struct {
	OrderId  OrderId
	Price    Price
	Quantity Quantity
}

// Trade pairs the bid-side and ask-side fill of a single match. The two
// sides' recorded prices differ only when the incoming order crossed the
// book (legal: the incoming order's limit price, not the passive side's
// price, is what crossed).
type Trade struct {
	Bid TradeInfo
	Ask TradeInfo
}

func (t Trade) String() string {
	return fmt.Sprintf(
		"Trade{bid: (%d, %d, %d), ask: (%d, %d, %d)}",
		t.Bid.OrderId, t.Bid.Price, t.Bid.Quantity,
		t.Ask.OrderId, t.Ask.Price, t.Ask.Quantity,
	)
}

// LevelInfo is a price and the summed remaining quantity resting at it.
type LevelInfo struct {
	Price    Price
	Quantity Quantity
}

// OrderInfos is a point-in-time snapshot of both ladders: bids descending
// by price, asks ascending.
type OrderInfos struct {
	Bids []LevelInfo
	Asks []LevelInfo
}
