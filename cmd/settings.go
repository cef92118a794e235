package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/radiantsdao/burnwatch/pkg/collections"
	"github.com/radiantsdao/burnwatch/pkg/stream"
	"github.com/spf13/viper"
)

const (
	defaultProgramID = "bidoyoucCtwvPJwmW4W9ysXWeesgvGxEYxkXmoXTaHy"

	networkMainnet = "mainnet"
	networkDevnet  = "devnet"

	backoffFixed       = "fixed"
	backoffExponential = "exponential"
)

// settings is the validated configuration shared by every subcommand.
type settings struct {
	APIKey  string
	Network string
	WSURL   string
	RPCURL  string
	Program solana.PublicKey

	DiscordToken     string
	DestinationsPath string

	ConnectTimeout time.Duration
	Retries        int
	RPS            float64

	ReconnectDelay time.Duration
	MaxDelay       time.Duration
	Backoff        string
	Workers        int
	QueueSize      int

	MetricsListen   string
	MetricsUsername string
	MetricsPassword string

	Collections []collections.Collection
}

type collectionConfig struct {
	Address    string `mapstructure:"address"`
	Name       string `mapstructure:"name"`
	Decoration string `mapstructure:"decoration"`
	Link       string `mapstructure:"link"`
}

// loadSettings reads and validates the configuration in v. Discord settings
// are only checked by the commands that need them.
func loadSettings(v *viper.Viper) (*settings, error) {
	s := &settings{
		APIKey:           strings.TrimSpace(v.GetString("helius.api_key")),
		Network:          strings.ToLower(v.GetString("helius.network")),
		WSURL:            v.GetString("helius.ws_url"),
		RPCURL:           v.GetString("helius.rpc_url"),
		DiscordToken:     strings.TrimSpace(v.GetString("discord.token")),
		DestinationsPath: v.GetString("discord.destinations"),
		ConnectTimeout:   v.GetDuration("rpc.connect_timeout"),
		Retries:          v.GetInt("rpc.retries"),
		RPS:              v.GetFloat64("rpc.rps"),
		ReconnectDelay:   v.GetDuration("watch.reconnect_delay"),
		MaxDelay:         v.GetDuration("watch.max_delay"),
		Backoff:          strings.ToLower(v.GetString("watch.backoff")),
		Workers:          v.GetInt("watch.workers"),
		QueueSize:        v.GetInt("watch.queue_size"),
		MetricsListen:    v.GetString("metrics.listen"),
		MetricsUsername:  v.GetString("metrics.username"),
		MetricsPassword:  v.GetString("metrics.password"),
	}

	switch s.Network {
	case "", networkMainnet:
		s.Network = networkMainnet
	case networkDevnet:
	default:
		return nil, fmt.Errorf("unknown helius.network %q (want mainnet or devnet)", s.Network)
	}
	if s.APIKey == "" && (s.WSURL == "" || s.RPCURL == "") {
		return nil, errors.New("helius.api_key is not set (config file or HELIUS_API_KEY)")
	}

	programID := v.GetString("program.id")
	if programID == "" {
		programID = defaultProgramID
	}
	program, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("invalid program.id %q: %w", programID, err)
	}
	s.Program = program

	switch s.Backoff {
	case "", backoffFixed:
		s.Backoff = backoffFixed
	case backoffExponential:
	default:
		return nil, fmt.Errorf("unknown watch.backoff %q (want fixed or exponential)", s.Backoff)
	}
	if s.ReconnectDelay <= 0 {
		s.ReconnectDelay = stream.DefaultReconnectDelay
	}
	if s.MaxDelay <= 0 {
		s.MaxDelay = stream.DefaultMaxDelay
	}

	var extra []collectionConfig
	if err := v.UnmarshalKey("collections", &extra); err != nil {
		return nil, fmt.Errorf("invalid collections: %w", err)
	}
	for _, c := range extra {
		addr, err := solana.PublicKeyFromBase58(c.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid collection address %q: %w", c.Address, err)
		}
		s.Collections = append(s.Collections, collections.Collection{
			Address:    addr,
			Name:       c.Name,
			Decoration: c.Decoration,
			Link:       c.Link,
		})
	}
	return s, nil
}

func (s *settings) requireDiscord() error {
	if s.DiscordToken == "" {
		return errors.New("discord.token is not set (config file, DISCORD_TOKEN or TOKEN)")
	}
	if s.DestinationsPath == "" {
		return errors.New("discord.destinations is not set")
	}
	return nil
}

// websocketURL is the enhanced websocket endpoint for the configured network.
func (s *settings) websocketURL() string {
	if s.WSURL != "" {
		return s.WSURL
	}
	return fmt.Sprintf("wss://atlas-%s.helius-rpc.com?api-key=%s", s.Network, s.APIKey)
}

// rpcEndpoint is the JSON-RPC endpoint for the configured network.
func (s *settings) rpcEndpoint() string {
	if s.RPCURL != "" {
		return s.RPCURL
	}
	return fmt.Sprintf("https://%s.helius-rpc.com/?api-key=%s", s.Network, s.APIKey)
}

func (s *settings) reconnectPolicy() stream.ReconnectPolicy {
	if s.Backoff == backoffExponential {
		return stream.ExponentialBackoff{Base: s.ReconnectDelay, Max: s.MaxDelay, Jitter: 0.2}
	}
	return stream.FixedDelay(s.ReconnectDelay)
}

func (s *settings) registry() *collections.Registry {
	return collections.Default().With(s.Collections...)
}
