// Package instruction decodes the bidding program's instructions into a
// closed set of typed variants.
package instruction

import (
	"github.com/gagliardetto/solana-go"
)

// Kind enumerates the instruction variants the watcher knows about.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindUpdateHighBid
	KindBuyTicket
)

func (k Kind) String() string {
	switch k {
	case KindUpdateHighBid:
		return "update_high_bid"
	case KindBuyTicket:
		return "buy_ticket"
	default:
		return "unrecognized"
	}
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "update_high_bid":
		return KindUpdateHighBid, true
	case "buy_ticket":
		return KindBuyTicket, true
	}
	return KindUnrecognized, false
}

// Instruction is one decoded instruction. The set of implementations is
// closed: UpdateHighBid, BuyTicket and Unrecognized.
type Instruction interface {
	Kind() Kind
	// Name is the program's own instruction name.
	Name() string
	isInstruction()
}

// UpdateHighBid is emitted when a bid becomes the auction's highest.
type UpdateHighBid struct {
	HighestBidTs  int64
	HighestBidder solana.PublicKey
	// HighestBid is the bid escrow account holding the offered NFTs.
	HighestBid solana.PublicKey
	// Auction is the auction account, when the instruction carried one.
	Auction solana.PublicKey
}

func (UpdateHighBid) Kind() Kind     { return KindUpdateHighBid }
func (UpdateHighBid) Name() string   { return NameUpdateHighBid }
func (UpdateHighBid) isInstruction() {}

// TicketVariant distinguishes the three ticket purchase instructions.
type TicketVariant string

const (
	TicketStandard    TicketVariant = NameBuyTicket
	TicketInscription TicketVariant = NameBuyTicketInscription
	TicketMint        TicketVariant = NameBuyTicketMint
)

// BuyTicket is emitted when a payer burns NFTs for raffle tickets.
type BuyTicket struct {
	Variant      TicketVariant
	Payer        solana.PublicKey
	Raffle       solana.PublicKey
	RaffleEscrow solana.PublicKey
}

func (BuyTicket) Kind() Kind     { return KindBuyTicket }
func (b BuyTicket) Name() string { return string(b.Variant) }
func (BuyTicket) isInstruction() {}

// Unrecognized is any other instruction of the program. It is carried
// through so callers can log it; no report is built from it.
type Unrecognized struct {
	Discriminator string
}

func (Unrecognized) Kind() Kind     { return KindUnrecognized }
func (u Unrecognized) Name() string { return "unknown:" + u.Discriminator }
func (Unrecognized) isInstruction() {}
