// Package notify fans a report out to every configured destination. A
// failure at one destination never stops delivery to the others.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/radiantsdao/burnwatch/pkg/logging"
	"github.com/radiantsdao/burnwatch/pkg/report"
)

// ErrChannelNotFound is returned by ResolveChannel when the destination's
// channel does not exist or is not visible to the bot.
var ErrChannelNotFound = errors.New("channel not found")

// Destination is one channel reports are delivered to.
type Destination struct {
	GuildID   string
	ChannelID string
}

// Destinations maps a guild id to its destination. A guild has at most one.
type Destinations map[string]Destination

type destinationsFile struct {
	Guilds map[string]struct {
		ChannelID string `json:"channelId"`
	} `json:"guilds"`
}

// LoadDestinations reads a destination file of the form
// {"guilds": {"<guild id>": {"channelId": "<channel id>"}}}.
func LoadDestinations(path string) (Destinations, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read destinations: %w", err)
	}
	return ParseDestinations(raw)
}

// ParseDestinations parses the contents of a destination file.
func ParseDestinations(raw []byte) (Destinations, error) {
	var f destinationsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse destinations: %w", err)
	}
	out := make(Destinations, len(f.Guilds))
	for guild, g := range f.Guilds {
		if g.ChannelID == "" {
			return nil, fmt.Errorf("parse destinations: guild %s has no channelId", guild)
		}
		out[guild] = Destination{GuildID: guild, ChannelID: g.ChannelID}
	}
	return out, nil
}

// Scope is one guild the platform client is connected to.
type Scope struct {
	ID   string
	Name string
}

// Platform is a chat platform client able to deliver reports.
type Platform interface {
	Name() string
	// Scopes lists the guilds the client is currently connected to.
	Scopes(ctx context.Context) ([]Scope, error)
	// ResolveChannel returns the id of the destination's channel, or
	// ErrChannelNotFound.
	ResolveChannel(ctx context.Context, dest Destination) (string, error)
	Send(ctx context.Context, channelID string, r *report.Report) error
}

// Result summarizes one Dispatch call.
type Result struct {
	// Attempted counts connected guilds that had a destination.
	Attempted int
	Delivered int
	Failed    int
	// Skipped counts connected guilds without a destination.
	Skipped int
	Errors  []error
}

// Dispatcher delivers reports through a Platform.
type Dispatcher struct {
	Platform     Platform
	Destinations Destinations
	Log          logging.Logger
}

// Dispatch delivers r to the destination of every connected guild, one after
// the other. Per-destination failures are logged and recorded in the Result;
// only a failure to list guilds is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, r *report.Report) (Result, error) {
	log := logging.OrNop(d.Log)
	var res Result

	scopes, err := d.Platform.Scopes(ctx)
	if err != nil {
		return res, fmt.Errorf("list %s guilds: %w", d.Platform.Name(), err)
	}

	for _, s := range scopes {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		dest, ok := d.Destinations[s.ID]
		if !ok {
			log.Infof("No destination configured for guild %s (%s)", s.ID, s.Name)
			res.Skipped++
			continue
		}
		res.Attempted++
		log.Debugf("Delivering %s report to guild %s channel %s", r.Kind, s.ID, dest.ChannelID)

		channelID, err := d.Platform.ResolveChannel(ctx, dest)
		if err != nil {
			log.Errorf("Could not resolve channel %s in guild %s: %v", dest.ChannelID, s.ID, err)
			res.fail(fmt.Errorf("guild %s: %w", s.ID, err))
			continue
		}
		if err := d.Platform.Send(ctx, channelID, r); err != nil {
			log.Errorf("Failed to send message to channel %s in guild %s: %v", channelID, s.ID, err)
			res.fail(fmt.Errorf("guild %s: %w", s.ID, err))
			continue
		}
		res.Delivered++
	}
	return res, nil
}

func (r *Result) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err)
}
