package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/radiantsdao/burnwatch/pkg/anchor"
	"golang.org/x/time/rate"
)

// ErrAccountNotFound is returned when a fetched account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// StateClient fetches the bidding program's accounts from the ledger.
type StateClient interface {
	BidEscrow(ctx context.Context, addr solana.PublicKey) (*BidEscrow, error)
	RaffleEscrow(ctx context.Context, addr solana.PublicKey) (*RaffleEscrow, error)
	RaffleState(ctx context.Context, addr solana.PublicKey) (*RaffleState, error)
	// Oracles returns every oracle account of the program.
	Oracles(ctx context.Context) ([]Oracle, error)
	// RaffleEscrows returns every raffle escrow account of the program.
	RaffleEscrows(ctx context.Context) ([]RaffleEscrow, error)
}

// accountFetcher is the subset of *rpc.Client the state client uses.
type accountFetcher interface {
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetProgramAccountsWithOpts(ctx context.Context, publicKey solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
}

// Config configures an RPCClient.
type Config struct {
	Endpoint   string
	Program    solana.PublicKey
	Commitment rpc.CommitmentType
	// RequestsPerSecond caps outgoing RPC calls; <= 0 means unlimited.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// RPCClient implements StateClient over Solana JSON-RPC.
type RPCClient struct {
	rpc        accountFetcher
	program    solana.PublicKey
	commitment rpc.CommitmentType
	limiter    *rate.Limiter
}

// NewRPCClient dials nothing; connections are made lazily per request. A
// nil HTTPClient means solana-go's default client.
func NewRPCClient(cfg Config) *RPCClient {
	if cfg.HTTPClient == nil {
		return newRPCClient(rpc.New(cfg.Endpoint), cfg)
	}
	opts := &jsonrpc.RPCClientOpts{HTTPClient: cfg.HTTPClient}
	return newRPCClient(rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(cfg.Endpoint, opts)), cfg)
}

func newRPCClient(fetcher accountFetcher, cfg Config) *RPCClient {
	commitment := cfg.Commitment
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &RPCClient{
		rpc:        fetcher,
		program:    cfg.Program,
		commitment: commitment,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (c *RPCClient) BidEscrow(ctx context.Context, addr solana.PublicKey) (*BidEscrow, error) {
	var v BidEscrow
	if err := c.fetch(ctx, addr, AccountBidEscrow, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *RPCClient) RaffleEscrow(ctx context.Context, addr solana.PublicKey) (*RaffleEscrow, error) {
	var v RaffleEscrow
	if err := c.fetch(ctx, addr, AccountRaffleEscrow, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *RPCClient) RaffleState(ctx context.Context, addr solana.PublicKey) (*RaffleState, error) {
	var v RaffleState
	if err := c.fetch(ctx, addr, AccountRaffleState, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *RPCClient) Oracles(ctx context.Context) ([]Oracle, error) {
	accounts, err := c.all(ctx, AccountOracle)
	if err != nil {
		return nil, err
	}
	out := make([]Oracle, 0, len(accounts))
	for _, acc := range accounts {
		var o Oracle
		if err := anchor.DecodeAccount(accountData(acc), AccountOracle, &o); err != nil {
			return nil, fmt.Errorf("oracle %s: %w", acc.Pubkey, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func (c *RPCClient) RaffleEscrows(ctx context.Context) ([]RaffleEscrow, error) {
	accounts, err := c.all(ctx, AccountRaffleEscrow)
	if err != nil {
		return nil, err
	}
	out := make([]RaffleEscrow, 0, len(accounts))
	for _, acc := range accounts {
		var e RaffleEscrow
		if err := anchor.DecodeAccount(accountData(acc), AccountRaffleEscrow, &e); err != nil {
			return nil, fmt.Errorf("raffle escrow %s: %w", acc.Pubkey, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (c *RPCClient) fetch(ctx context.Context, addr solana.PublicKey, name string, v interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", name, addr, ErrAccountNotFound)
	}
	if err != nil {
		return fmt.Errorf("fetch %s %s: %w", name, addr, err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return fmt.Errorf("%s %s: %w", name, addr, ErrAccountNotFound)
	}
	if err := anchor.DecodeAccount(res.Value.Data.GetBinary(), name, v); err != nil {
		return fmt.Errorf("%s %s: %w", name, addr, err)
	}
	return nil
}

// all lists every program account whose data starts with the account
// discriminator for name.
func (c *RPCClient) all(ctx context.Context, name string) (rpc.GetProgramAccountsResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	disc := anchor.AccountDiscriminator(name)
	res, err := c.rpc.GetProgramAccountsWithOpts(ctx, c.program, &rpc.GetProgramAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: c.commitment,
		Filters: []rpc.RPCFilter{
			{Memcmp: &rpc.RPCFilterMemcmp{Offset: 0, Bytes: solana.Base58(disc[:])}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("list %s accounts: %w", name, err)
	}
	return res, nil
}

func accountData(acc *rpc.KeyedAccount) []byte {
	if acc == nil || acc.Account == nil || acc.Account.Data == nil {
		return nil
	}
	return acc.Account.Data.GetBinary()
}
