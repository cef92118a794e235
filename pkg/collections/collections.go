// Package collections holds the display metadata for the NFT collections the
// incinerator accepts. The registry is read-only once built; per-report counts
// and floor values never live here.
package collections

import (
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/radiantsdao/burnwatch/internal/utils"
)

// Administrative is the pass-through collection used by the program for
// bookkeeping. It never shows up in report lines or totals.
var Administrative = solana.MustPublicKeyFromBase58("SUB1orE6jSMF8K627BPLXyJY5LthVyDriAxTXdCF4Cy")

const unknownDecoration = "🔹"

// Collection is the display metadata for a single collection.
type Collection struct {
	Address    solana.PublicKey
	Name       string
	Decoration string
	Link       string
}

// Markdown renders the collection name as a markdown hyperlink, or just the
// name when no link is known.
func (c Collection) Markdown() string {
	if c.Link == "" {
		return c.Name
	}
	return fmt.Sprintf("[%s](%s)", c.Name, c.Link)
}

// Registry maps collection addresses to their metadata.
type Registry struct {
	byAddress map[solana.PublicKey]Collection
}

// NewRegistry builds a registry. Later entries override earlier ones with the
// same address.
func NewRegistry(cs ...Collection) *Registry {
	r := &Registry{byAddress: make(map[solana.PublicKey]Collection, len(cs))}
	for _, c := range cs {
		r.byAddress[c.Address] = c
	}
	return r
}

// With returns a new registry containing r's entries plus cs.
func (r *Registry) With(cs ...Collection) *Registry {
	merged := make([]Collection, 0, len(r.byAddress)+len(cs))
	merged = append(merged, r.All()...)
	merged = append(merged, cs...)
	return NewRegistry(merged...)
}

// Lookup returns the metadata for addr. Collections missing from the
// registry get a placeholder named after the shortened address and linked
// to the account on Solscan.
func (r *Registry) Lookup(addr solana.PublicKey) Collection {
	if c, ok := r.byAddress[addr]; ok {
		return c
	}
	s := addr.String()
	return Collection{
		Address:    addr,
		Name:       utils.ShortAddress(s),
		Decoration: unknownDecoration,
		Link:       "https://solscan.io/account/" + s,
	}
}

// Known reports whether addr has registered metadata.
func (r *Registry) Known(addr solana.PublicKey) bool {
	_, ok := r.byAddress[addr]
	return ok
}

// All returns the registered collections sorted by name.
func (r *Registry) All() []Collection {
	out := make([]Collection, 0, len(r.byAddress))
	for _, c := range r.byAddress {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Default returns the collections accepted by the incinerator at launch.
func Default() *Registry {
	return NewRegistry(
		Collection{
			Address:    solana.MustPublicKeyFromBase58("2SBsLb5CwstwxxDmbanRdvV9vzeACRdvYEJjpPSFjJpE"),
			Name:       "Bears Reloaded",
			Decoration: "🐻",
			Link:       "https://twitter.com/BearsReloaded",
		},
		Collection{
			Address:    solana.MustPublicKeyFromBase58("BEArZkWNAB8xGRzsKzyQy6orjeZqMefMfmMWbJPqRr6o"),
			Name:       "Solbears",
			Decoration: "🐻",
			Link:       "https://twitter.com/BearsReloaded",
		},
		Collection{
			Address:    solana.MustPublicKeyFromBase58("Ah8Jvc4pLq2WCV3MCAme2viDoavmqc7PskUkhrhiF3m8"),
			Name:       "People Nipple Cats",
			Decoration: "😼",
			Link:       "https://twitter.com/BearsReloaded",
		},
		Collection{
			Address:    solana.MustPublicKeyFromBase58("GxPPZB5q1nsUTPw8Kkp4qUpbegrGxHiJfgzm3V43zjAy"),
			Name:       "Ded Monkes",
			Decoration: "💀",
			Link:       "https://twitter.com/DegenMonkes",
		},
		Collection{
			Address:    solana.MustPublicKeyFromBase58("5f2zrjBonizqt6LiHSDfbTPH74sHMZFahYQGyPNh825G"),
			Name:       "BAPE",
			Decoration: "🐵",
			Link:       "https://twitter.com/WeAreBuilders_",
		},
		Collection{
			Address:    solana.MustPublicKeyFromBase58("BiwemBos3Su9QcNUiwkZMbSKi7m959t5oVpmPnM9Z3SH"),
			Name:       "LIFINITY Flares",
			Decoration: "🔥",
			Link:       "https://twitter.com/Lifinity_io",
		},
		Collection{
			Address:    solana.MustPublicKeyFromBase58("1qYQboR1jkeDZdbwBCpXbBcNGPTPh9T5iHWmkvyrtAh"),
			Name:       "Netrunner",
			Decoration: "🪙",
			Link:       "https://twitter.com/NetrunnerTax",
		},
		Collection{
			Address:    solana.MustPublicKeyFromBase58("A9UQNRecVBGzokYvXr9A727VCHjp3LZMcQXKxqTqY1Zd"),
			Name:       "Ape Energy Labs",
			Decoration: "🔌",
			Link:       "https://twitter.com//Gleam_dApp",
		},
		Collection{
			Address:    solana.MustPublicKeyFromBase58("EBZXnEpDU2JQpPDdmUC8T9NJgD1RU1vxDZFCEj4MmtjL"),
			Name:       "Phase Passports",
			Decoration: "⚡️",
			Link:       "https://twitter.com/phaselabs_",
		},
		Collection{
			Address:    solana.MustPublicKeyFromBase58("596Ts1WPD3rTUfTvow4rgnMgFvreuJQbQw9YA8Rgg21t"),
			Name:       "Sketchy Scales",
			Decoration: "🦎",
			Link:       "https://twitter.com/SketchyScales",
		},
	)
}
