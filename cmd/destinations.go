package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/radiantsdao/burnwatch/pkg/notify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// destinationsCmd lists the guilds the bot is in and where each one's
// reports go.
var destinationsCmd = &cobra.Command{
	Use:   "destinations",
	Short: "Show which Discord guilds and channels receive reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(viper.GetViper())
		if err != nil {
			return err
		}
		if err := s.requireDiscord(); err != nil {
			return err
		}

		dispatcher, closeDiscord, err := newDispatcher(s)
		if err != nil {
			return err
		}
		defer closeDiscord()

		scopes, err := dispatcher.Platform.Scopes(cmd.Context())
		if err != nil {
			return err
		}
		return writeDestinations(cmd.OutOrStdout(), destinationRows(scopes, dispatcher.Destinations))
	},
}

func init() {
	rootCmd.AddCommand(destinationsCmd)
}

type destinationRow struct {
	guild, name, channel, status string
}

// destinationRows joins connected guilds with configured destinations.
func destinationRows(scopes []notify.Scope, dests notify.Destinations) []destinationRow {
	var rows []destinationRow
	connected := make(map[string]bool, len(scopes))
	for _, sc := range scopes {
		connected[sc.ID] = true
		row := destinationRow{guild: sc.ID, name: sc.Name, channel: "-", status: "no destination"}
		if d, ok := dests[sc.ID]; ok {
			row.channel = d.ChannelID
			row.status = "ok"
		}
		rows = append(rows, row)
	}
	for id, d := range dests {
		if !connected[id] {
			rows = append(rows, destinationRow{guild: id, name: "-", channel: d.ChannelID, status: "bot not in guild"})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].guild < rows[j].guild })
	return rows
}

func writeDestinations(out io.Writer, rows []destinationRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, "The bot is not in any guild and no destinations are configured.")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "GUILD\tNAME\tCHANNEL\tSTATUS\t")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", r.guild, r.name, r.channel, r.status)
	}
	return w.Flush()
}
