// Package report builds the alert for a recognized instruction from the
// related on-chain accounts.
package report

import (
	"fmt"
	"strings"

	"github.com/radiantsdao/burnwatch/pkg/collections"
	"github.com/shopspring/decimal"
)

// Kind identifies which algorithm produced a report.
type Kind string

const (
	KindHighBid        Kind = "high_bid"
	KindTicketPurchase Kind = "ticket_purchase"
)

const (
	title        = "**_Prepare the incinerator..._**"
	highBidImage = "https://i.ibb.co/r3zBxc2/rad-Ticket.png"
	ticketImage  = "https://i.ibb.co/86yR3xT/radbanner.png"
)

// Line is one collection's contribution to a report.
type Line struct {
	Collection collections.Collection
	Count      uint64
	Floor      decimal.Decimal
	Value      decimal.Decimal
}

// Stats is an NFT count with its floor value and the tickets that value buys.
type Stats struct {
	Count   uint64
	Value   decimal.Decimal
	Tickets int64
}

// Report is built once per recognized instruction and delivered once.
type Report struct {
	Kind      Kind
	Signature string
	// Subject is the bidder or burner the report is about.
	Subject string
	// Lines holds collections with a non-zero count, in escrow order.
	Lines []Line
	Total Stats
	// Raffle holds raffle-wide stats for ticket purchases.
	Raffle *Stats
}

func (r *Report) Title() string { return title }

func (r *Report) Description() string {
	if r.Kind == KindTicketPurchase {
		return "**A new NFT has been burned!** 🔥"
	}
	return "**A new high bid has been set!** 🔥"
}

func (r *Report) Image() string {
	if r.Kind == KindTicketPurchase {
		return ticketImage
	}
	return highBidImage
}

// SubjectLabel names the subject's role in the embed field.
func (r *Report) SubjectLabel() string {
	if r.Kind == KindTicketPurchase {
		return "Burner:"
	}
	return "Bidder:"
}

// Offerings renders the per-collection lines followed by the totals, using
// Discord markdown.
func (r *Report) Offerings() string {
	return strings.Join(r.OfferingLines(), "\n")
}

// OfferingLines returns the entries of Offerings, one per collection and
// one per totals block. Renderers with a length limit split between them.
func (r *Report) OfferingLines() []string {
	lines := make([]string, 0, len(r.Lines)+2)
	for _, l := range r.Lines {
		lines = append(lines, fmt.Sprintf("%s %s: **%d** NFTs | Floor: **%s** | Value: **%s**",
			l.Collection.Decoration, l.Collection.Markdown(), l.Count, l.Floor.StringFixed(2), l.Value.StringFixed(2)))
	}
	switch r.Kind {
	case KindTicketPurchase:
		lines = append(lines, fmt.Sprintf("🌞 **User Stats:**\nBurned: **%d** NFTs 💛 | Value: **%s** SOL | 🎟️ Tickets: %d",
			r.Total.Count, r.Total.Value.StringFixed(2), r.Total.Tickets))
		if r.Raffle != nil {
			lines = append(lines, fmt.Sprintf("🏆 **Raffle Stats:**\nBurned: **%d** NFTs 💥 | Value: **%s** SOL | 🎟️ Tickets: **%d**",
				r.Raffle.Count, r.Raffle.Value.StringFixed(2), r.Raffle.Tickets))
		}
	default:
		lines = append(lines, fmt.Sprintf("🏆 **Total:** **%d** NFTs 💛 | Value: **%s** SOL ", r.Total.Count, r.Total.Value.StringFixed(2)))
	}
	return lines
}

// SolscanURL and SolanaFMURL link to the subject's account.
func (r *Report) SolscanURL() string  { return "https://solscan.io/account/" + r.Subject }
func (r *Report) SolanaFMURL() string { return "https://solana.fm/address/" + r.Subject }

// Links renders the explorer links as markdown.
func (r *Report) Links() string {
	return fmt.Sprintf("🔎 [Solscan](%s) 🕵️ [SolanaFM](%s)", r.SolscanURL(), r.SolanaFMURL())
}

// String renders the report as plain text for terminals and logs.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n%s\n\n%s `%s`\n%s\n", r.Title(), r.Description(), r.Offerings(), r.SubjectLabel(), r.Subject, r.Links())
	if r.Signature != "" {
		fmt.Fprintf(&b, "tx: %s\n", r.Signature)
	}
	return b.String()
}
