package book

import (
	"container/list"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"
)

// ladder is a sorted price -> priceLevel map. Bids are ordered so that
// Min() yields the highest price (best bid); asks are ordered so that
// Min() yields the lowest price (best ask). Max() on either ladder
// therefore yields that side's worst resting price, which is what a
// rewritten Market order needs (spec §4.5).
type ladder = btree.BTreeG[*priceLevel]

// orderEntry is the order index's handle: the owned order plus the stable
// cursor locating it inside its ladder's queue. The cursor tolerates
// insertions/removals elsewhere in the same queue because container/list
// elements are independent of position, unlike an index into a slice.
type orderEntry struct {
	order *Order
	elem  *list.Element
}

// Orderbook is a single-symbol limit order book: two price ladders, an
// order index, and the matching engine and order-type policy layer that
// operate on them. A single mutex serializes every public operation,
// including those issued by the session sweeper.
type Orderbook struct {
	mu sync.Mutex

	bids *ladder
	asks *ladder

	index map[OrderId]orderEntry

	sweeper *Sweeper
}

// New constructs an empty order book and starts its session sweeper.
// Close must be called to join the sweeper before the book is discarded.
func New() *Orderbook {
	ob := &Orderbook{
		bids:  btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price > b.price }),
		asks:  btree.NewBTreeG(func(a, b *priceLevel) bool { return a.price < b.price }),
		index: make(map[OrderId]orderEntry),
	}
	ob.sweeper = NewSweeper(ob)
	ob.sweeper.Start()
	return ob
}

// Close signals the session sweeper to stop and waits for it to exit.
func (ob *Orderbook) Close() error {
	return ob.sweeper.Stop()
}

func (ob *Orderbook) ladderFor(side Side) *ladder {
	if side == Buy {
		return ob.bids
	}
	return ob.asks
}

func (ob *Orderbook) oppositeLadder(side Side) *ladder {
	if side == Buy {
		return ob.asks
	}
	return ob.bids
}

// AddOrder accepts a newly constructed order under the order-type policy
// (spec §4.5) and runs the matching engine. It never fails: a rejected or
// dropped submission simply returns no trades and leaves the book
// untouched.
func (ob *Orderbook) AddOrder(order *Order) []Trade {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return ob.addOrderLocked(order)
}

func (ob *Orderbook) addOrderLocked(order *Order) []Trade {
	if _, exists := ob.index[order.orderId]; exists {
		return nil
	}

	if order.orderType == Market {
		opposite := ob.oppositeLadder(order.side)
		worst, ok := opposite.Max()
		if !ok {
			// Empty opposite side: the market order is dropped.
			return nil
		}
		order.toGoodTillCancel(worst.price)
	}

	if order.orderType == FillAndKill && !ob.canMatch(order.side, order.price) {
		return nil
	}

	if order.orderType == FillOrKill && !ob.canFullyFill(order.side, order.price, order.initialQuantity) {
		return nil
	}

	ob.insertLocked(order)
	trades := ob.match()

	// Resolved Open Question: a FillAndKill purges itself if it failed to
	// fully trade, regardless of whether it landed at its queue's front —
	// not just when it happens to still be the ladder's front order.
	if order.orderType == FillAndKill {
		if _, stillResting := ob.index[order.orderId]; stillResting {
			ob.cancelOrderLocked(order.orderId)
		}
	}

	return trades
}

func (ob *Orderbook) insertLocked(order *Order) {
	ld := ob.ladderFor(order.side)
	level, ok := ld.GetMut(&priceLevel{price: order.price})
	if !ok {
		level = newPriceLevel(order.price)
		ld.Set(level)
	}
	elem := level.orders.PushBack(order)
	level.update(levelAdd, order.initialQuantity)
	ob.index[order.orderId] = orderEntry{order: order, elem: elem}
}

// canMatch reports whether an order of the given side and price would
// cross the opposite side's best price (spec §4.5 steps 3-4 / §4.6 step 1).
func (ob *Orderbook) canMatch(side Side, price Price) bool {
	if side == Buy {
		bestAsk, ok := ob.asks.Min()
		if !ok {
			return false
		}
		return price >= bestAsk.price
	}
	bestBid, ok := ob.bids.Min()
	if !ok {
		return false
	}
	return price <= bestBid.price
}

// canFullyFill implements spec §4.6. Every comparison is fully
// parenthesized to avoid the precedence ambiguity flagged against the
// original implementation.
func (ob *Orderbook) canFullyFill(side Side, price Price, quantity Quantity) bool {
	if !ob.canMatch(side, price) {
		return false
	}

	opposite := ob.oppositeLadder(side)
	remaining := quantity
	fullyFillable := false

	// Scan walks the opposite ladder in its natural (best-first) order, so
	// the traversal floor is automatically the opposite side's best price;
	// the only remaining skip is "worse than the incoming limit price."
	opposite.Scan(func(level *priceLevel) bool {
		worseThanLimit := (side == Buy && level.price > price) || (side == Sell && level.price < price)
		if worseThanLimit {
			return false
		}
		if remaining <= level.total {
			fullyFillable = true
			return false
		}
		remaining -= level.total
		return true
	})

	return fullyFillable
}

// match runs the continuous matching engine (spec §4.4) until the book is
// no longer crossed, emitting a Trade per fill event.
func (ob *Orderbook) match() []Trade {
	var trades []Trade

	for {
		bestBid, bidOk := ob.bids.Min()
		bestAsk, askOk := ob.asks.Min()
		if !bidOk || !askOk || bestBid.price < bestAsk.price {
			break
		}

		bidFront := bestBid.orders.Front()
		askFront := bestAsk.orders.Front()
		bidOrder := bidFront.Value.(*Order)
		askOrder := askFront.Value.(*Order)

		quantity := min(bidOrder.remainingQuantity, askOrder.remainingQuantity)
		bidOrder.fill(quantity)
		askOrder.fill(quantity)

		if bidOrder.IsFilled() {
			bestBid.orders.Remove(bidFront)
			delete(ob.index, bidOrder.orderId)
			bestBid.update(levelRemove, quantity)
		} else {
			bestBid.update(levelMatch, quantity)
		}

		if askOrder.IsFilled() {
			bestAsk.orders.Remove(askFront)
			delete(ob.index, askOrder.orderId)
			bestAsk.update(levelRemove, quantity)
		} else {
			bestAsk.update(levelMatch, quantity)
		}

		trades = append(trades, Trade{
			Bid: TradeInfo{OrderId: bidOrder.orderId, Price: bidOrder.price, Quantity: quantity},
			Ask: TradeInfo{OrderId: askOrder.orderId, Price: askOrder.price, Quantity: quantity},
		})

		if bestBid.empty() {
			ob.bids.Delete(bestBid)
		}
		if bestAsk.empty() {
			ob.asks.Delete(bestAsk)
		}
	}

	if len(trades) > 0 {
		log.Debug().Int("trades", len(trades)).Msg("match cycle complete")
	}

	return trades
}

// cancelOrderLocked removes a resting order from the index and its ladder
// queue. Callers must hold ob.mu. Unknown ids are a silent no-op.
func (ob *Orderbook) cancelOrderLocked(id OrderId) {
	entry, ok := ob.index[id]
	if !ok {
		return
	}
	delete(ob.index, id)

	ld := ob.ladderFor(entry.order.side)
	level, ok := ld.GetMut(&priceLevel{price: entry.order.price})
	if !ok {
		log.Error().Uint64("orderId", uint64(id)).Msg("order index referenced a missing price level")
		return
	}

	level.orders.Remove(entry.elem)
	level.update(levelRemove, entry.order.remainingQuantity)
	if level.empty() {
		ld.Delete(level)
	}
}

// CancelOrder cancels a resting order. Unknown ids are a silent no-op,
// making repeated cancels of the same id idempotent.
func (ob *Orderbook) CancelOrder(id OrderId) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.cancelOrderLocked(id)
}

// CancelOrders cancels every given id under a single critical section.
func (ob *Orderbook) CancelOrders(ids []OrderId) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	for _, id := range ids {
		ob.cancelOrderLocked(id)
	}
}

// ModifyOrder preserves the existing order's type, cancels it, and
// resubmits it with the new side/price/quantity. This loses queue
// position at the original price and may re-engage the order-type gates
// (e.g. a FillOrKill modify can be dropped by the new parameters).
//
// The lock is released between the cancel and the add (spec §5's
// reentrancy note): each sub-operation is independently correct, and a
// concurrent operation may interleave between them.
func (ob *Orderbook) ModifyOrder(id OrderId, side Side, price Price, quantity Quantity) []Trade {
	ob.mu.Lock()
	entry, ok := ob.index[id]
	if !ok {
		ob.mu.Unlock()
		return nil
	}
	orderType := entry.order.orderType
	ob.mu.Unlock()

	ob.CancelOrder(id)
	return ob.AddOrder(NewOrder(orderType, id, side, price, quantity))
}

// Size returns the number of resting orders.
func (ob *Orderbook) Size() int {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	return len(ob.index)
}

// GetOrderInfos takes a point-in-time snapshot of both ladders: bids
// descending by price, asks ascending.
func (ob *Orderbook) GetOrderInfos() OrderInfos {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	var infos OrderInfos
	ob.bids.Scan(func(level *priceLevel) bool {
		infos.Bids = append(infos.Bids, LevelInfo{Price: level.price, Quantity: level.total})
		return true
	})
	ob.asks.Scan(func(level *priceLevel) bool {
		infos.Asks = append(infos.Asks, LevelInfo{Price: level.price, Quantity: level.total})
		return true
	})
	return infos
}

// collectGoodForDay snapshots every resting GoodForDay order id under the
// lock, used by the session sweeper.
func (ob *Orderbook) collectGoodForDay() []OrderId {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	var ids []OrderId
	for id, entry := range ob.index {
		if entry.order.orderType == GoodForDay {
			ids = append(ids, id)
		}
	}
	return ids
}
