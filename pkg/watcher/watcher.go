// Package watcher wires one stream to the report pipeline: frames are
// filtered on the connection's goroutine, and each decoded instruction is
// handed to a bounded pool of workers that aggregate and deliver it.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/radiantsdao/burnwatch/pkg/filter"
	"github.com/radiantsdao/burnwatch/pkg/instruction"
	"github.com/radiantsdao/burnwatch/pkg/logging"
	"github.com/radiantsdao/burnwatch/pkg/metrics"
	"github.com/radiantsdao/burnwatch/pkg/notify"
	"github.com/radiantsdao/burnwatch/pkg/report"
	"github.com/radiantsdao/burnwatch/pkg/stream"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

// Aggregator builds the report for an instruction. *report.Aggregator
// implements it.
type Aggregator interface {
	Aggregate(ctx context.Context, ix instruction.Instruction) (*report.Report, error)
}

// Dispatcher delivers a report. *notify.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, r *report.Report) (notify.Result, error)
}

// Config holds everything a Watcher needs.
type Config struct {
	Name     string
	Program  solana.PublicKey
	Endpoint string
	// Kinds limits which instructions are reported. Empty means every
	// recognized kind.
	Kinds      []instruction.Kind
	Decoder    instruction.Decoder // defaults to instruction.NewAnchorDecoder()
	Aggregator Aggregator
	Dispatcher Dispatcher
	Dialer     stream.Dialer
	Policy     stream.ReconnectPolicy // defaults to stream.FixedDelay(5s)
	Workers    int                    // defaults to 4 if <= 0
	QueueSize  int                    // defaults to 64 if <= 0
	Metrics    *metrics.Metrics       // optional
	Log        logging.Logger         // optional; nil = no logging
}

// Watcher runs one stream and its workers.
type Watcher struct {
	cfg    Config
	log    logging.Logger
	kinds  map[instruction.Kind]bool
	filter *filter.Filter
	conn   *stream.Connection
	queue  chan filter.Decoded
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Watcher, error) {
	switch {
	case cfg.Endpoint == "":
		return nil, errors.New("watcher: endpoint is required")
	case cfg.Program.IsZero():
		return nil, errors.New("watcher: program is required")
	case cfg.Aggregator == nil, cfg.Dispatcher == nil, cfg.Dialer == nil:
		return nil, errors.New("watcher: aggregator, dispatcher and dialer are required")
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Decoder == nil {
		cfg.Decoder = instruction.NewAnchorDecoder()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	w := &Watcher{
		cfg:   cfg,
		log:   logging.OrNop(cfg.Log),
		kinds: make(map[instruction.Kind]bool, len(cfg.Kinds)),
	}
	for _, k := range cfg.Kinds {
		w.kinds[k] = true
	}
	w.filter = &filter.Filter{
		Program: cfg.Program,
		Decoder: cfg.Decoder,
		Log:     w.log,
		OnDrop:  func(r filter.DropReason) { cfg.Metrics.Drop(cfg.Name, string(r)) },
	}
	w.conn = &stream.Connection{
		Name:          cfg.Name,
		URL:           cfg.Endpoint,
		Program:       cfg.Program,
		Dialer:        cfg.Dialer,
		Policy:        cfg.Policy,
		Log:           w.log,
		OnStateChange: func(s stream.State) { cfg.Metrics.State(cfg.Name, int(s)) },
		OnReconnect:   func(int, time.Duration) { cfg.Metrics.Reconnect(cfg.Name) },
	}
	return w, nil
}

func (w *Watcher) Name() string { return w.cfg.Name }

// State is the state of the underlying connection.
func (w *Watcher) State() stream.State { return w.conn.State() }

// Run streams until ctx is cancelled, then waits for queued instructions to
// finish before returning.
func (w *Watcher) Run(ctx context.Context) error {
	if w.queue != nil {
		return fmt.Errorf("watcher %s is already running", w.cfg.Name)
	}
	w.queue = make(chan filter.Decoded, w.cfg.QueueSize)
	w.conn.Handler = func(frame []byte) { w.handleFrame(ctx, frame) }

	// Queued work outlives both the connection it arrived on and ctx.
	workCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range w.queue {
				w.process(workCtx, d)
				w.cfg.Metrics.QueueDepth(w.cfg.Name, len(w.queue))
			}
		}()
	}

	w.log.Infof("Watching %s instructions of %s with %d workers", w.cfg.Name, w.cfg.Program, w.cfg.Workers)
	err := w.conn.Run(ctx)

	close(w.queue)
	if n := len(w.queue); n > 0 {
		w.log.Infof("Draining %d queued instructions for %s", n, w.cfg.Name)
	}
	wg.Wait()
	return err
}

func (w *Watcher) wants(k instruction.Kind) bool {
	if k == instruction.KindUnrecognized {
		return false
	}
	return len(w.kinds) == 0 || w.kinds[k]
}

// handleFrame runs on the connection goroutine. It blocks while the queue is
// full, which stalls reads on the socket.
func (w *Watcher) handleFrame(ctx context.Context, frame []byte) {
	w.cfg.Metrics.Frame(w.cfg.Name)
	for d := range w.filter.Instructions(frame) {
		kind := d.Instruction.Kind()
		w.cfg.Metrics.Instruction(w.cfg.Name, kind.String())
		if !w.wants(kind) {
			w.log.Debugf("Ignoring %s in %s", d.Instruction.Name(), d.Signature)
			continue
		}
		select {
		case w.queue <- d:
			w.cfg.Metrics.QueueDepth(w.cfg.Name, len(w.queue))
		case <-ctx.Done():
			w.log.Warnf("Shutting down, dropping %s in %s", d.Instruction.Name(), d.Signature)
			return
		}
	}
}

// process aggregates and delivers one instruction. Nothing that goes wrong
// here reaches the stream or other instructions.
func (w *Watcher) process(ctx context.Context, d filter.Decoded) {
	defer func() {
		if p := recover(); p != nil {
			w.log.Errorf("Panic processing %s in %s: %v", d.Instruction.Name(), d.Signature, p)
			w.cfg.Metrics.Aggregated(w.cfg.Name, "", 0, fmt.Errorf("panic: %v", p))
		}
	}()

	start := time.Now()
	r, err := w.cfg.Aggregator.Aggregate(ctx, d.Instruction)
	took := time.Since(start)
	if err != nil {
		w.cfg.Metrics.Aggregated(w.cfg.Name, "", took, err)
		w.log.Errorf("Error processing %s in %s: %v", d.Instruction.Name(), d.Signature, err)
		return
	}
	if r == nil {
		return
	}
	w.cfg.Metrics.Aggregated(w.cfg.Name, string(r.Kind), took, nil)
	r.Signature = d.Signature
	w.log.Infof("Built %s report for %s in %s (%d collections)", r.Kind, r.Subject, d.Signature, len(r.Lines))

	res, err := w.cfg.Dispatcher.Dispatch(ctx, r)
	w.cfg.Metrics.Delivered(w.cfg.Name, res.Delivered, res.Failed, res.Skipped)
	if err != nil {
		w.log.Errorf("Could not deliver report for %s: %v", d.Signature, err)
		return
	}
	w.log.Infof("Delivered report for %s to %d of %d destinations", d.Signature, res.Delivered, res.Attempted)
}
