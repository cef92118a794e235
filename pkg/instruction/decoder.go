package instruction

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/radiantsdao/burnwatch/pkg/anchor"
)

// Instruction names as declared by the bidding program.
const (
	NameUpdateHighBid        = "update_high_bid"
	NameBuyTicket            = "buy_ticket"
	NameBuyTicketInscription = "buy_ticket_inscription"
	NameBuyTicketMint        = "buy_ticket_mint"
)

// Positions of the accounts the ticket purchase instructions are read from.
const (
	ticketPayerIndex    = 0
	ticketRaffleIndex   = 1
	ticketEscrowIndex   = 5
	highBidAuctionIndex = 1
)

var ErrMissingAccounts = errors.New("instruction is missing accounts")

// Decoder turns raw instruction data plus its account list into an
// Instruction. An error means the bytes did not match the schema; data for
// instructions outside the known set decodes to Unrecognized.
type Decoder interface {
	Decode(data []byte, accounts []string) (Instruction, error)
}

// updateHighBidArgs is the borsh layout of update_high_bid's single `args`
// parameter.
type updateHighBidArgs struct {
	HighestBidTs  int64
	HighestBidder solana.PublicKey
	HighestBid    solana.PublicKey
}

type decodeFunc func(body []byte, accounts []string) (Instruction, error)

// AnchorDecoder decodes instructions by their Anchor sighash discriminator.
type AnchorDecoder struct {
	byDiscriminator map[anchor.Discriminator]decodeFunc
}

// NewAnchorDecoder returns a decoder for the bidding program's schema.
func NewAnchorDecoder() *AnchorDecoder {
	d := &AnchorDecoder{byDiscriminator: make(map[anchor.Discriminator]decodeFunc)}
	d.register(NameUpdateHighBid, decodeUpdateHighBid)
	for _, v := range []TicketVariant{TicketStandard, TicketInscription, TicketMint} {
		d.register(string(v), buyTicketDecoder(v))
	}
	return d
}

func (d *AnchorDecoder) register(name string, fn decodeFunc) {
	d.byDiscriminator[anchor.InstructionDiscriminator(name)] = fn
}

func (d *AnchorDecoder) Decode(data []byte, accounts []string) (Instruction, error) {
	disc, body, err := anchor.Split(data)
	if err != nil {
		return nil, err
	}
	fn, ok := d.byDiscriminator[disc]
	if !ok {
		return Unrecognized{Discriminator: disc.String()}, nil
	}
	return fn(body, accounts)
}

func decodeUpdateHighBid(body []byte, accounts []string) (Instruction, error) {
	var args updateHighBidArgs
	if err := anchor.DecodeArgs(body, &args); err != nil {
		return nil, fmt.Errorf("decode %s args: %w", NameUpdateHighBid, err)
	}
	ix := UpdateHighBid{
		HighestBidTs:  args.HighestBidTs,
		HighestBidder: args.HighestBidder,
		HighestBid:    args.HighestBid,
	}
	if len(accounts) > highBidAuctionIndex {
		auction, err := solana.PublicKeyFromBase58(accounts[highBidAuctionIndex])
		if err != nil {
			return nil, fmt.Errorf("%s auction account: %w", NameUpdateHighBid, err)
		}
		ix.Auction = auction
	}
	return ix, nil
}

func buyTicketDecoder(variant TicketVariant) decodeFunc {
	return func(_ []byte, accounts []string) (Instruction, error) {
		if len(accounts) <= ticketEscrowIndex {
			return nil, fmt.Errorf("%w: %s needs %d, got %d", ErrMissingAccounts, variant, ticketEscrowIndex+1, len(accounts))
		}
		keys := make([]solana.PublicKey, 0, 3)
		for _, i := range []int{ticketPayerIndex, ticketRaffleIndex, ticketEscrowIndex} {
			k, err := solana.PublicKeyFromBase58(accounts[i])
			if err != nil {
				return nil, fmt.Errorf("%s account %d: %w", variant, i, err)
			}
			keys = append(keys, k)
		}
		return BuyTicket{
			Variant:      variant,
			Payer:        keys[0],
			Raffle:       keys[1],
			RaffleEscrow: keys[2],
		}, nil
	}
}
