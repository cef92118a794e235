package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/radiantsdao/burnwatch/pkg/collections"
	"github.com/radiantsdao/burnwatch/pkg/instruction"
	"github.com/radiantsdao/burnwatch/pkg/ledger"
	"github.com/shopspring/decimal"
)

// ErrOracleNotFound is returned when an escrow holds a collection that has
// no oracle. There is no fallback price.
var ErrOracleNotFound = errors.New("no oracle for collection")

var (
	ticketPrice   = decimal.RequireFromString("0.02")
	oracleDivisor = decimal.New(1, ledger.OracleDecimals)
)

// Tickets converts a SOL value into raffle tickets, rounding up.
func Tickets(value decimal.Decimal) int64 {
	return value.Div(ticketPrice).Ceil().IntPart()
}

// FloorPrice converts an oracle's raw floor price into SOL.
func FloorPrice(o ledger.Oracle) decimal.Decimal {
	return decimal.NewFromUint64(o.FloorPrice).Div(oracleDivisor)
}

// Aggregator builds reports by reading the accounts an instruction refers to.
type Aggregator struct {
	state    ledger.StateClient
	registry *collections.Registry
}

// NewAggregator returns an Aggregator. A nil registry means
// collections.Default().
func NewAggregator(state ledger.StateClient, registry *collections.Registry) *Aggregator {
	if registry == nil {
		registry = collections.Default()
	}
	return &Aggregator{state: state, registry: registry}
}

// Aggregate returns the report for ix, or nil when ix is not something we
// report on.
func (a *Aggregator) Aggregate(ctx context.Context, ix instruction.Instruction) (*Report, error) {
	switch ix := ix.(type) {
	case instruction.UpdateHighBid:
		return a.HighBid(ctx, ix)
	case instruction.BuyTicket:
		return a.TicketPurchase(ctx, ix)
	default:
		return nil, nil
	}
}

// HighBid reports the NFTs offered by the new highest bid.
func (a *Aggregator) HighBid(ctx context.Context, ix instruction.UpdateHighBid) (*Report, error) {
	escrow, err := a.state.BidEscrow(ctx, ix.HighestBid)
	if err != nil {
		return nil, fmt.Errorf("fetch bid escrow %s: %w", ix.HighestBid, err)
	}
	oracles, err := a.oracles(ctx)
	if err != nil {
		return nil, err
	}

	lines, total, err := a.contribution(escrow.Collections, oracles)
	if err != nil {
		return nil, err
	}
	return &Report{
		Kind:    KindHighBid,
		Subject: ix.HighestBidder.String(),
		Lines:   lines,
		Total:   total,
	}, nil
}

// TicketPurchase reports what the payer burned plus the raffle's running
// totals.
func (a *Aggregator) TicketPurchase(ctx context.Context, ix instruction.BuyTicket) (*Report, error) {
	escrow, err := a.state.RaffleEscrow(ctx, ix.RaffleEscrow)
	if err != nil {
		return nil, fmt.Errorf("fetch raffle escrow %s: %w", ix.RaffleEscrow, err)
	}
	raffle, err := a.state.RaffleState(ctx, ix.Raffle)
	if err != nil {
		return nil, fmt.Errorf("fetch raffle %s: %w", ix.Raffle, err)
	}
	oracles, err := a.oracles(ctx)
	if err != nil {
		return nil, err
	}

	lines, total, err := a.contribution(escrow.Collections, oracles)
	if err != nil {
		return nil, err
	}
	total.Tickets = Tickets(total.Value)

	all, err := a.state.RaffleEscrows(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch raffle escrows: %w", err)
	}
	raffleValue, err := raffleValue(ix.Raffle, all, oracles)
	if err != nil {
		return nil, err
	}

	return &Report{
		Kind:    KindTicketPurchase,
		Subject: ix.Payer.String(),
		Lines:   lines,
		Total:   total,
		Raffle: &Stats{
			Count:   raffle.Burned,
			Value:   raffleValue,
			Tickets: Tickets(raffleValue),
		},
	}, nil
}

func (a *Aggregator) oracles(ctx context.Context) (map[solana.PublicKey]ledger.Oracle, error) {
	list, err := a.state.Oracles(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch oracles: %w", err)
	}
	out := make(map[solana.PublicKey]ledger.Oracle, len(list))
	for _, o := range list {
		out[o.Collection] = o
	}
	return out, nil
}

// contribution prices one escrow's entries. The oracle lookup comes before
// the administrative check, so an escrow holding the administrative
// collection still needs its oracle.
func (a *Aggregator) contribution(entries []ledger.CollectionCount, oracles map[solana.PublicKey]ledger.Oracle) ([]Line, Stats, error) {
	var (
		lines []Line
		total Stats
	)
	for _, e := range entries {
		o, ok := oracles[e.Value]
		if !ok {
			return nil, Stats{}, fmt.Errorf("%w %s", ErrOracleNotFound, e.Value)
		}
		if e.Value.Equals(collections.Administrative) {
			continue
		}
		floor := FloorPrice(o)
		value := decimal.NewFromUint64(e.Count).Mul(floor)
		total.Count += e.Count
		total.Value = total.Value.Add(value)
		if e.Count > 0 {
			lines = append(lines, Line{
				Collection: a.registry.Lookup(e.Value),
				Count:      e.Count,
				Floor:      floor,
				Value:      value,
			})
		}
	}
	return lines, total, nil
}

// raffleValue sums the value of every escrow burned into raffle.
func raffleValue(raffle solana.PublicKey, escrows []ledger.RaffleEscrow, oracles map[solana.PublicKey]ledger.Oracle) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, esc := range escrows {
		if !esc.Raffle.Equals(raffle) {
			continue
		}
		for _, e := range esc.Collections {
			if e.Value.Equals(collections.Administrative) {
				continue
			}
			o, ok := oracles[e.Value]
			if !ok {
				return decimal.Zero, fmt.Errorf("%w %s", ErrOracleNotFound, e.Value)
			}
			sum = sum.Add(decimal.NewFromUint64(e.Count).Mul(FloorPrice(o)))
		}
	}
	return sum, nil
}
