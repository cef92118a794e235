package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/radiantsdao/burnwatch/pkg/anchor"
	"github.com/radiantsdao/burnwatch/pkg/instruction"
	"github.com/radiantsdao/burnwatch/pkg/metrics"
	"github.com/radiantsdao/burnwatch/pkg/notify"
	"github.com/radiantsdao/burnwatch/pkg/report"
	"github.com/radiantsdao/burnwatch/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var program = solana.MustPublicKeyFromBase58("bidoyoucCtwvPJwmW4W9ysXWeesgvGxEYxkXmoXTaHy")

// scriptedSocket replays frames, then blocks until closed.
type scriptedSocket struct {
	mu     sync.Mutex
	frames [][]byte
	closed chan struct{}
	once   sync.Once
}

func (s *scriptedSocket) WriteJSON(interface{}) error               { return nil }
func (s *scriptedSocket) WriteControl(int, []byte, time.Time) error { return nil }

func (s *scriptedSocket) ReadMessage() (int, []byte, error) {
	s.mu.Lock()
	if len(s.frames) > 0 {
		f := s.frames[0]
		s.frames = s.frames[1:]
		s.mu.Unlock()
		return 1, f, nil
	}
	s.mu.Unlock()
	<-s.closed
	return 0, nil, errors.New("closed")
}

func (s *scriptedSocket) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type scriptedDialer struct{ sock *scriptedSocket }

func (d scriptedDialer) Dial(context.Context, string) (stream.Socket, error) { return d.sock, nil }

type fakeAggregator struct {
	mu   sync.Mutex
	seen []instruction.Instruction
	fail map[solana.PublicKey]bool
}

func (a *fakeAggregator) Aggregate(_ context.Context, ix instruction.Instruction) (*report.Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, ix)
	switch ix := ix.(type) {
	case instruction.UpdateHighBid:
		if a.fail[ix.HighestBid] {
			return nil, report.ErrOracleNotFound
		}
		return &report.Report{Kind: report.KindHighBid, Subject: ix.HighestBidder.String()}, nil
	case instruction.BuyTicket:
		return &report.Report{Kind: report.KindTicketPurchase, Subject: ix.Payer.String()}, nil
	}
	return nil, nil
}

type fakeDispatcher struct {
	mu      sync.Mutex
	reports []*report.Report
	done    chan struct{}
	want    int
}

func (d *fakeDispatcher) Dispatch(_ context.Context, r *report.Report) (notify.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reports = append(d.reports, r)
	if len(d.reports) == d.want {
		close(d.done)
	}
	return notify.Result{Attempted: 1, Delivered: 1}, nil
}

type rawIx struct {
	ProgramID string   `json:"programId"`
	Data      string   `json:"data"`
	Accounts  []string `json:"accounts"`
}

func highBidIx(t *testing.T, bidder, escrow solana.PublicKey) rawIx {
	t.Helper()
	data, err := anchor.Encode(anchor.InstructionDiscriminator(instruction.NameUpdateHighBid), struct {
		HighestBidTs  int64
		HighestBidder solana.PublicKey
		HighestBid    solana.PublicKey
	}{1, bidder, escrow})
	require.NoError(t, err)
	return rawIx{ProgramID: program.String(), Data: base58.Encode(data), Accounts: []string{bidder.String(), solana.NewWallet().PublicKey().String()}}
}

func ticketIx() rawIx {
	disc := anchor.InstructionDiscriminator(instruction.NameBuyTicket)
	accs := make([]string, 6)
	for i := range accs {
		accs[i] = solana.NewWallet().PublicKey().String()
	}
	return rawIx{ProgramID: program.String(), Data: base58.Encode(disc[:]), Accounts: accs}
}

func notification(t *testing.T, sig string, ixs ...rawIx) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"method": "transactionNotification",
		"params": map[string]interface{}{
			"result": map[string]interface{}{
				"signature": sig,
				"transaction": map[string]interface{}{
					"transaction": map[string]interface{}{
						"signatures": []string{sig},
						"message":    map[string]interface{}{"instructions": ixs},
					},
					"meta": map[string]interface{}{"err": nil},
				},
			},
		},
	})
	require.NoError(t, err)
	return b
}

func TestNewValidates(t *testing.T) {
	base := Config{
		Endpoint:   "wss://example",
		Program:    program,
		Aggregator: &fakeAggregator{},
		Dispatcher: &fakeDispatcher{},
		Dialer:     scriptedDialer{},
	}
	w, err := New(base)
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, w.cfg.Workers)
	assert.Equal(t, DefaultQueueSize, w.cfg.QueueSize)
	assert.Equal(t, stream.StateDisconnected, w.State())

	for name, mutate := range map[string]func(*Config){
		"no endpoint":   func(c *Config) { c.Endpoint = "" },
		"no program":    func(c *Config) { c.Program = solana.PublicKey{} },
		"no aggregator": func(c *Config) { c.Aggregator = nil },
		"no dispatcher": func(c *Config) { c.Dispatcher = nil },
		"no dialer":     func(c *Config) { c.Dialer = nil },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestRunDeliversWantedKinds(t *testing.T) {
	bidder, good, bad := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	sock := &scriptedSocket{
		closed: make(chan struct{}),
		frames: [][]byte{
			[]byte("not json"),
			notification(t, "sig-1", highBidIx(t, bidder, bad), ticketIx()),
			notification(t, "sig-2", highBidIx(t, bidder, good)),
		},
	}
	agg := &fakeAggregator{fail: map[solana.PublicKey]bool{bad: true}}
	disp := &fakeDispatcher{done: make(chan struct{}), want: 1}

	w, err := New(Config{
		Name:       "highbid",
		Endpoint:   "wss://example",
		Program:    program,
		Kinds:      []instruction.Kind{instruction.KindUpdateHighBid},
		Aggregator: agg,
		Dispatcher: disp,
		Dialer:     scriptedDialer{sock: sock},
		Workers:    1,
		Metrics:    metrics.New(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	select {
	case <-disp.done:
	case <-time.After(5 * time.Second):
		t.Fatal("report was not delivered")
	}
	cancel()
	require.NoError(t, <-errc)

	// The failing high bid is aggregated and dropped; the ticket purchase is
	// never aggregated by this watcher.
	require.Len(t, agg.seen, 2)
	for _, got := range agg.seen {
		assert.Equal(t, instruction.KindUpdateHighBid, got.Kind())
	}
	require.Len(t, disp.reports, 1)
	assert.Equal(t, "sig-2", disp.reports[0].Signature)
	assert.Equal(t, bidder.String(), disp.reports[0].Subject)
}

func TestRunDrainsQueueOnShutdown(t *testing.T) {
	var frames [][]byte
	for i := 0; i < 5; i++ {
		frames = append(frames, notification(t, "sig", ticketIx()))
	}
	sock := &scriptedSocket{closed: make(chan struct{}), frames: frames}
	disp := &fakeDispatcher{done: make(chan struct{}), want: 5}

	w, err := New(Config{
		Endpoint:   "wss://example",
		Program:    program,
		Aggregator: &fakeAggregator{},
		Dispatcher: disp,
		Dialer:     scriptedDialer{sock: sock},
		Workers:    2,
		QueueSize:  1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	<-disp.done
	cancel()
	require.NoError(t, <-errc)
	assert.Len(t, disp.reports, 5)
	assert.Error(t, w.Run(context.Background()))
}
