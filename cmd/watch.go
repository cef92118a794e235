package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/radiantsdao/burnwatch/internal/server"
	"github.com/radiantsdao/burnwatch/internal/utils"
	"github.com/radiantsdao/burnwatch/pkg/instruction"
	"github.com/radiantsdao/burnwatch/pkg/ledger"
	"github.com/radiantsdao/burnwatch/pkg/metrics"
	"github.com/radiantsdao/burnwatch/pkg/notify"
	"github.com/radiantsdao/burnwatch/pkg/notify/discord"
	"github.com/radiantsdao/burnwatch/pkg/report"
	"github.com/radiantsdao/burnwatch/pkg/stream"
	"github.com/radiantsdao/burnwatch/pkg/watcher"
	"github.com/radiantsdao/burnwatch/pkg/whttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// streamKinds maps each stream name to the instructions it reports on.
var streamKinds = map[string][]instruction.Kind{
	"highbid": {instruction.KindUpdateHighBid},
	"raffle":  {instruction.KindBuyTicket},
}

// watchCmd implements: burnwatch watch
//
//	--stream string   Comma-separated streams to run: highbid, raffle or all (default)
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the bidding program and post alerts to Discord",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'burnwatch watch --help'", args[0])
		}
		streamsFlag, _ := cmd.Flags().GetString("stream")
		names, err := parseStreams(streamsFlag)
		if err != nil {
			return err
		}

		s, err := loadSettings(viper.GetViper())
		if err != nil {
			return err
		}
		if err := s.requireDiscord(); err != nil {
			return err
		}
		proxy, _ := cmd.Flags().GetString("proxy")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		aggregator, err := newAggregator(s, proxy)
		if err != nil {
			return err
		}
		dispatcher, closeDiscord, err := newDispatcher(s)
		if err != nil {
			return err
		}
		defer closeDiscord()

		m := metrics.New()
		var watchers []*watcher.Watcher
		for _, name := range names {
			connID := uuid.NewString()
			w, err := watcher.New(watcher.Config{
				Name:       name,
				Program:    s.Program,
				Endpoint:   s.websocketURL(),
				Kinds:      streamKinds[name],
				Aggregator: aggregator,
				Dispatcher: dispatcher,
				Dialer:     stream.WebsocketDialer{HandshakeTimeout: s.ConnectTimeout, Proxy: proxy},
				Policy:     s.reconnectPolicy(),
				Workers:    s.Workers,
				QueueSize:  s.QueueSize,
				Metrics:    m,
				Log:        utils.Log.WithField("stream", name).WithField("conn", connID),
			})
			if err != nil {
				return err
			}
			watchers = append(watchers, w)
		}

		var wg sync.WaitGroup
		errs := make(chan error, len(watchers)+1)

		if s.MetricsListen != "" {
			status := func() map[string]string {
				out := make(map[string]string, len(watchers))
				for _, w := range watchers {
					out[w.Name()] = w.State().String()
				}
				return out
			}
			srv := server.New(m.Handler(), status, s.MetricsUsername, s.MetricsPassword)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := srv.Start(ctx, s.MetricsListen); err != nil {
					errs <- fmt.Errorf("metrics server: %w", err)
				}
			}()
		}

		for _, w := range watchers {
			wg.Add(1)
			go func(w *watcher.Watcher) {
				defer wg.Done()
				if err := w.Run(ctx); err != nil {
					errs <- fmt.Errorf("stream %s: %w", w.Name(), err)
				}
			}(w)
		}

		wg.Wait()
		close(errs)
		var all []error
		for err := range errs {
			all = append(all, err)
		}
		utils.Log.Info("Stopped")
		return errors.Join(all...)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("stream", "all", "Streams to run: highbid, raffle or all (comma-separated)")
}

// parseStreams turns the --stream flag into a sorted list of stream names.
func parseStreams(flag string) ([]string, error) {
	seen := make(map[string]bool)
	for _, part := range strings.Split(flag, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch {
		case part == "":
		case part == "all":
			for name := range streamKinds {
				seen[name] = true
			}
		case streamKinds[part] != nil:
			seen[part] = true
		default:
			return nil, fmt.Errorf("unknown stream %q (want highbid, raffle or all)", part)
		}
	}
	if len(seen) == 0 {
		return nil, errors.New("no stream selected")
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func newAggregator(s *settings, proxy string) (*report.Aggregator, error) {
	httpClient, err := whttp.NewClient(whttp.ClientConfig{
		ConnectTimeout: s.ConnectTimeout,
		Retries:        s.Retries,
		Proxy:          proxy,
		Log:            utils.Log,
	})
	if err != nil {
		return nil, err
	}
	state := ledger.NewRPCClient(ledger.Config{
		Endpoint:          s.rpcEndpoint(),
		Program:           s.Program,
		RequestsPerSecond: s.RPS,
		HTTPClient:        httpClient,
	})
	return report.NewAggregator(state, s.registry()), nil
}

// newDispatcher loads the destinations and opens the Discord session. The
// returned func closes the session.
func newDispatcher(s *settings) (*notify.Dispatcher, func(), error) {
	destinations, err := notify.LoadDestinations(s.DestinationsPath)
	if err != nil {
		return nil, nil, err
	}
	utils.Log.Infof("Loaded %d destinations from %s", len(destinations), s.DestinationsPath)

	client, err := discord.New(s.DiscordToken, nil)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Open(); err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := client.Close(); err != nil {
			utils.Log.Warnf("Closing discord session: %v", err)
		}
	}
	return &notify.Dispatcher{Platform: client, Destinations: destinations, Log: utils.Log}, closer, nil
}
