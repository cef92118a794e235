package ledger

import (
	"github.com/gagliardetto/solana-go"
)

// Anchor account type names of the bidding program.
const (
	AccountBidEscrow    = "BidEscrow"
	AccountRaffleEscrow = "RaffleEscrow"
	AccountRaffleState  = "RaffleState"
	AccountOracle       = "Oracle"
)

// OracleDecimals is the number of implied decimals in Oracle.FloorPrice.
const OracleDecimals = 9

// CollectionCount is one per-collection entry of an escrow: how many NFTs of
// collection Value it holds.
type CollectionCount struct {
	Value solana.PublicKey
	Count uint64
}

// Oracle gives the current floor price of one collection, in lamports.
type Oracle struct {
	Collection solana.PublicKey
	FloorPrice uint64
}

// BidEscrow holds the NFTs offered by one bid on an auction.
type BidEscrow struct {
	Bidder      solana.PublicKey
	Auction     solana.PublicKey
	Collections []CollectionCount
}

// RaffleEscrow holds the NFTs one payer burned into a raffle.
type RaffleEscrow struct {
	Payer       solana.PublicKey
	Raffle      solana.PublicKey
	Collections []CollectionCount
}

// RaffleState is the raffle itself. Burned is the program's own running
// count of NFTs burned into it.
type RaffleState struct {
	Authority  solana.PublicKey
	Allowlists []solana.PublicKey
	Burned     uint64
}
