// Package replay implements the test input grammar described in spec §6.
// It is an external collaborator, not part of the order book core: the
// grammar, its fixture files, and the expectation line are testing
// infrastructure the book is driven through, grounded on the original
// source's OrderbookTests/test.cpp InputHandler.
package replay

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"matchbook/internal/book"
)

// ActionKind distinguishes the three mutating grammar lines.
type ActionKind int

const (
	ActionAdd ActionKind = iota
	ActionModify
	ActionCancel
)

// Instruction is one parsed, non-terminal grammar line.
type Instruction struct {
	Kind      ActionKind
	Side      book.Side
	OrderType book.OrderType
	Price     book.Price
	Quantity  book.Quantity
	OrderId   book.OrderId
}

// Expectation is the terminal "R" line: the expected final book state.
type Expectation struct {
	Total     int
	BidLevels int
	AskLevels int
}

// Script is a fully parsed fixture: its instructions in order, followed by
// the expected final state.
type Script struct {
	Instructions []Instruction
	Expect       Expectation
}

// Parse reads a grammar fixture per spec §6:
//
//	A <B|S> <OrderType> <price> <quantity> <id>
//	M <id> <B|S> <price> <quantity>
//	C <id>
//	R <total_resting> <bid_levels> <ask_levels>   (must be the last line)
func Parse(r io.Reader) (Script, error) {
	var script Script
	sawResult := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if sawResult {
			return Script{}, fmt.Errorf("replay: result line must be last, found trailing %q", line)
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "A":
			inst, err := parseAdd(fields)
			if err != nil {
				return Script{}, err
			}
			script.Instructions = append(script.Instructions, inst)
		case "M":
			inst, err := parseModify(fields)
			if err != nil {
				return Script{}, err
			}
			script.Instructions = append(script.Instructions, inst)
		case "C":
			inst, err := parseCancel(fields)
			if err != nil {
				return Script{}, err
			}
			script.Instructions = append(script.Instructions, inst)
		case "R":
			exp, err := parseResult(fields)
			if err != nil {
				return Script{}, err
			}
			script.Expect = exp
			sawResult = true
		default:
			return Script{}, fmt.Errorf("replay: unknown action %q", fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return Script{}, err
	}
	if !sawResult {
		return Script{}, fmt.Errorf("replay: no result line specified")
	}
	return script, nil
}

func parseAdd(fields []string) (Instruction, error) {
	if len(fields) != 6 {
		return Instruction{}, fmt.Errorf("replay: malformed add line %q", strings.Join(fields, " "))
	}
	side, err := parseSide(fields[1])
	if err != nil {
		return Instruction{}, err
	}
	orderType, err := parseOrderType(fields[2])
	if err != nil {
		return Instruction{}, err
	}
	price, err := parsePrice(fields[3])
	if err != nil {
		return Instruction{}, err
	}
	quantity, err := parseQuantity(fields[4])
	if err != nil {
		return Instruction{}, err
	}
	id, err := parseOrderId(fields[5])
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Kind:      ActionAdd,
		Side:      side,
		OrderType: orderType,
		Price:     price,
		Quantity:  quantity,
		OrderId:   id,
	}, nil
}

func parseModify(fields []string) (Instruction, error) {
	if len(fields) != 5 {
		return Instruction{}, fmt.Errorf("replay: malformed modify line %q", strings.Join(fields, " "))
	}
	id, err := parseOrderId(fields[1])
	if err != nil {
		return Instruction{}, err
	}
	side, err := parseSide(fields[2])
	if err != nil {
		return Instruction{}, err
	}
	price, err := parsePrice(fields[3])
	if err != nil {
		return Instruction{}, err
	}
	quantity, err := parseQuantity(fields[4])
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Kind:     ActionModify,
		OrderId:  id,
		Side:     side,
		Price:    price,
		Quantity: quantity,
	}, nil
}

func parseCancel(fields []string) (Instruction, error) {
	if len(fields) != 2 {
		return Instruction{}, fmt.Errorf("replay: malformed cancel line %q", strings.Join(fields, " "))
	}
	id, err := parseOrderId(fields[1])
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Kind: ActionCancel, OrderId: id}, nil
}

func parseResult(fields []string) (Expectation, error) {
	if len(fields) != 4 {
		return Expectation{}, fmt.Errorf("replay: malformed result line %q", strings.Join(fields, " "))
	}
	total, err := strconv.Atoi(fields[1])
	if err != nil {
		return Expectation{}, fmt.Errorf("replay: invalid total %q: %w", fields[1], err)
	}
	bids, err := strconv.Atoi(fields[2])
	if err != nil {
		return Expectation{}, fmt.Errorf("replay: invalid bid level count %q: %w", fields[2], err)
	}
	asks, err := strconv.Atoi(fields[3])
	if err != nil {
		return Expectation{}, fmt.Errorf("replay: invalid ask level count %q: %w", fields[3], err)
	}
	return Expectation{Total: total, BidLevels: bids, AskLevels: asks}, nil
}

func parseSide(s string) (book.Side, error) {
	switch s {
	case "B":
		return book.Buy, nil
	case "S":
		return book.Sell, nil
	default:
		return 0, fmt.Errorf("replay: unknown side %q", s)
	}
}

func parseOrderType(s string) (book.OrderType, error) {
	switch s {
	case "GoodTillCancel":
		return book.GoodTillCancel, nil
	case "FillAndKill":
		return book.FillAndKill, nil
	case "FillOrKill":
		return book.FillOrKill, nil
	case "GoodForDay":
		return book.GoodForDay, nil
	case "Market":
		return book.Market, nil
	default:
		return 0, fmt.Errorf("replay: unknown order type %q", s)
	}
}

func parsePrice(s string) (book.Price, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("replay: invalid price %q: %w", s, err)
	}
	return book.Price(v), nil
}

func parseQuantity(s string) (book.Quantity, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("replay: invalid quantity %q: %w", s, err)
	}
	return book.Quantity(v), nil
}

func parseOrderId(s string) (book.OrderId, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("replay: invalid order id %q: %w", s, err)
	}
	return book.OrderId(v), nil
}

// Run drives a book through a script's instructions and returns the trades
// produced by each, plus whether the final state matches the expectation.
func Run(ob *book.Orderbook, script Script) (trades [][]book.Trade, matched bool) {
	for _, inst := range script.Instructions {
		switch inst.Kind {
		case ActionAdd:
			var order *book.Order
			if inst.OrderType == book.Market {
				order = book.NewMarketOrder(inst.OrderId, inst.Side, inst.Quantity)
			} else {
				order = book.NewOrder(inst.OrderType, inst.OrderId, inst.Side, inst.Price, inst.Quantity)
			}
			trades = append(trades, ob.AddOrder(order))
		case ActionModify:
			trades = append(trades, ob.ModifyOrder(inst.OrderId, inst.Side, inst.Price, inst.Quantity))
		case ActionCancel:
			ob.CancelOrder(inst.OrderId)
			trades = append(trades, nil)
		}
	}

	infos := ob.GetOrderInfos()
	matched = ob.Size() == script.Expect.Total &&
		len(infos.Bids) == script.Expect.BidLevels &&
		len(infos.Asks) == script.Expect.AskLevels
	return trades, matched
}
