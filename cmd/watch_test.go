package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/radiantsdao/burnwatch/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStreams(t *testing.T) {
	tests := []struct {
		flag    string
		want    []string
		wantErr bool
	}{
		{flag: "all", want: []string{"highbid", "raffle"}},
		{flag: "raffle", want: []string{"raffle"}},
		{flag: "Raffle, highbid", want: []string{"highbid", "raffle"}},
		{flag: "highbid,all", want: []string{"highbid", "raffle"}},
		{flag: "", wantErr: true},
		{flag: "auction", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			got, err := parseStreams(tt.flag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDestinationRows(t *testing.T) {
	scopes := []notify.Scope{{ID: "2", Name: "Friends"}, {ID: "1", Name: "Radiants"}}
	dests := notify.Destinations{
		"1": {GuildID: "1", ChannelID: "c1"},
		"3": {GuildID: "3", ChannelID: "c3"},
	}

	rows := destinationRows(scopes, dests)
	assert.Equal(t, []destinationRow{
		{guild: "1", name: "Radiants", channel: "c1", status: "ok"},
		{guild: "2", name: "Friends", channel: "-", status: "no destination"},
		{guild: "3", name: "-", channel: "c3", status: "bot not in guild"},
	}, rows)
}

func TestWriteDestinations(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeDestinations(&buf, []destinationRow{
		{guild: "1", name: "Radiants", channel: "c1", status: "ok"},
		{guild: "3", name: "-", channel: "c3", status: "bot not in guild"},
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "GUILD"))
	assert.Contains(t, lines[1], "Radiants")
	assert.Contains(t, lines[2], "bot not in guild")

	buf.Reset()
	require.NoError(t, writeDestinations(&buf, nil))
	assert.Equal(t, "The bot is not in any guild and no destinations are configured.\n", buf.String())
}
