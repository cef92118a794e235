// Package discord delivers reports as Discord embeds.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/radiantsdao/burnwatch/pkg/notify"
	"github.com/radiantsdao/burnwatch/pkg/report"
)

const (
	embedColor  = 0xfce184
	footerText  = "https://twitter.com/RadiantsDAO"
	footerIcon  = "https://upload.wikimedia.org/wikipedia/commons/thumb/6/6f/Logo_of_Twitter.svg/512px-Logo_of_Twitter.svg.png"
	botIntents  = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	tokenPrefix = "Bot "

	// maxFieldValue is Discord's limit on an embed field value, in characters.
	maxFieldValue = 1024
)

// session is the part of *discordgo.Session the client uses.
type session interface {
	Open() error
	Close() error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Client is a notify.Platform backed by a Discord bot session.
type Client struct {
	session session
	state   *discordgo.State
}

// New creates a bot client for token. Call Open before use.
func New(token string, httpClient *http.Client) (*Client, error) {
	s, err := discordgo.New(tokenPrefix + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = botIntents
	if httpClient != nil {
		s.Client = httpClient
	}
	return &Client{session: s, state: s.State}, nil
}

// Open connects to the gateway. Guilds become visible to Scopes once the
// gateway has sent them.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

func (c *Client) Close() error { return c.session.Close() }

func (c *Client) Name() string { return "discord" }

func (c *Client) Scopes(ctx context.Context) ([]notify.Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.state == nil {
		return nil, errors.New("discord state is not tracked")
	}
	c.state.RLock()
	defer c.state.RUnlock()

	out := make([]notify.Scope, 0, len(c.state.Guilds))
	for _, g := range c.state.Guilds {
		out = append(out, notify.Scope{ID: g.ID, Name: g.Name})
	}
	return out, nil
}

func (c *Client) ResolveChannel(ctx context.Context, dest notify.Destination) (string, error) {
	ch, err := c.session.Channel(dest.ChannelID, discordgo.WithContext(ctx))
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("%w: %s", notify.ErrChannelNotFound, dest.ChannelID)
		}
		return "", err
	}
	if ch.GuildID != "" && ch.GuildID != dest.GuildID {
		return "", fmt.Errorf("%w: %s is not in guild %s", notify.ErrChannelNotFound, dest.ChannelID, dest.GuildID)
	}
	return ch.ID, nil
}

func (c *Client) Send(ctx context.Context, channelID string, r *report.Report) error {
	_, err := c.session.ChannelMessageSendEmbed(channelID, Embed(r), discordgo.WithContext(ctx))
	return err
}

// Embed renders r as a Discord embed.
func Embed(r *report.Report) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       r.Title(),
		Description: r.Description(),
		Color:       embedColor,
		Image:       &discordgo.MessageEmbedImage{URL: r.Image()},
		Fields: append(offeringFields(r.OfferingLines()),
			&discordgo.MessageEmbedField{Name: r.SubjectLabel(), Value: "`" + r.Subject + "`"},
			&discordgo.MessageEmbedField{Name: "Links:", Value: r.Links()},
		),
		Footer: &discordgo.MessageEmbedFooter{Text: footerText, IconURL: footerIcon},
	}
}

// offeringFields packs lines into as few fields as fit Discord's field
// value limit. Only the first field carries the "Offerings:" name.
func offeringFields(lines []string) []*discordgo.MessageEmbedField {
	var (
		fields []*discordgo.MessageEmbedField
		value  strings.Builder
		size   int
	)
	flush := func() {
		if value.Len() == 0 {
			return
		}
		f := &discordgo.MessageEmbedField{Name: "Offerings (cont.):", Value: value.String()}
		if len(fields) == 0 {
			f.Name, f.Inline = "Offerings:", true
		}
		fields = append(fields, f)
		value.Reset()
		size = 0
	}
	for _, line := range lines {
		line = truncate(line, maxFieldValue)
		n := utf8.RuneCountInString(line)
		if size > 0 && size+1+n > maxFieldValue {
			flush()
		}
		if size > 0 {
			value.WriteByte('\n')
			size++
		}
		value.WriteString(line)
		size += n
	}
	flush()
	if len(fields) == 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Offerings:", Value: "-", Inline: true})
	}
	return fields
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-1]) + "…"
}
