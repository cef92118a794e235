package filter

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/radiantsdao/burnwatch/pkg/anchor"
	"github.com/radiantsdao/burnwatch/pkg/instruction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var program = solana.MustPublicKeyFromBase58("bidoyoucCtwvPJwmW4W9ysXWeesgvGxEYxkXmoXTaHy")

type rawIx struct {
	ProgramID string   `json:"programId"`
	Data      string   `json:"data"`
	Accounts  []string `json:"accounts"`
}

func frame(t *testing.T, method string, txErr interface{}, ixs ...rawIx) []byte {
	t.Helper()
	msg := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params": map[string]interface{}{
			"subscription": 1,
			"result": map[string]interface{}{
				"signature": "sig-1",
				"transaction": map[string]interface{}{
					"transaction": map[string]interface{}{
						"signatures": []string{"sig-1"},
						"message":    map[string]interface{}{"instructions": ixs},
					},
					"meta": map[string]interface{}{"err": txErr},
				},
			},
		},
	}
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

// countingDecoder records every call and delegates to the real decoder.
type countingDecoder struct {
	calls int
	inner instruction.Decoder
	err   error
}

func (c *countingDecoder) Decode(data []byte, accounts []string) (instruction.Instruction, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Decode(data, accounts)
}

func ticketIx(t *testing.T, programID string) rawIx {
	disc := anchor.InstructionDiscriminator(instruction.NameBuyTicket)
	accs := make([]string, 6)
	for i := range accs {
		accs[i] = solana.NewWallet().PublicKey().String()
	}
	return rawIx{ProgramID: programID, Data: base58.Encode(disc[:]), Accounts: accs}
}

func collect(f *Filter, b []byte) []Decoded {
	var out []Decoded
	for d := range f.Instructions(b) {
		out = append(out, d)
	}
	return out
}

func newFilter(dec instruction.Decoder, drops *[]DropReason) *Filter {
	return &Filter{
		Program: program,
		Decoder: dec,
		OnDrop:  func(r DropReason) { *drops = append(*drops, r) },
	}
}

func TestFilterDropsMalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  DropReason
	}{
		{"not json", []byte("hello"), DropInvalidJSON},
		{"truncated json", []byte(`{"method":"transactionNotification"`), DropInvalidJSON},
		{"wrong method", []byte(`{"method":"accountNotification","params":{}}`), DropWrongMethod},
		{"subscription ack", []byte(`{"jsonrpc":"2.0","result":4242,"id":420}`), DropWrongMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var drops []DropReason
			dec := &countingDecoder{inner: instruction.NewAnchorDecoder()}
			f := newFilter(dec, &drops)

			assert.NotPanics(t, func() {
				assert.Empty(t, collect(f, tt.frame))
			})
			assert.Equal(t, []DropReason{tt.want}, drops)
			assert.Zero(t, dec.calls)
		})
	}
}

func TestFilterSkipsFailedTransactions(t *testing.T) {
	var drops []DropReason
	dec := &countingDecoder{inner: instruction.NewAnchorDecoder()}
	f := newFilter(dec, &drops)

	b := frame(t, MethodTransactionNotification, map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}, ticketIx(t, program.String()))

	assert.Empty(t, collect(f, b))
	assert.Equal(t, []DropReason{DropFailedTx}, drops)
	assert.Zero(t, dec.calls)
}

func TestFilterMetaErrPresence(t *testing.T) {
	setMeta := func(t *testing.T, b []byte, meta interface{}) []byte {
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(b, &msg))
		tx := msg["params"].(map[string]interface{})["result"].(map[string]interface{})["transaction"].(map[string]interface{})
		if meta == nil {
			delete(tx, "meta")
		} else {
			tx["meta"] = meta
		}
		out, err := json.Marshal(msg)
		require.NoError(t, err)
		return out
	}

	tests := []struct {
		name      string
		meta      interface{}
		wantDrops []DropReason
		wantCalls int
	}{
		{"null err", map[string]interface{}{"err": nil}, nil, 1},
		{"no err key", map[string]interface{}{"fee": 5000}, []DropReason{DropFailedTx}, 0},
		{"no meta", nil, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var drops []DropReason
			dec := &countingDecoder{inner: instruction.NewAnchorDecoder()}
			f := newFilter(dec, &drops)

			b := setMeta(t, frame(t, MethodTransactionNotification, nil, ticketIx(t, program.String())), tt.meta)
			collect(f, b)
			assert.Equal(t, tt.wantDrops, drops)
			assert.Equal(t, tt.wantCalls, dec.calls)
		})
	}
}

func TestFilterIgnoresOtherPrograms(t *testing.T) {
	var drops []DropReason
	dec := &countingDecoder{inner: instruction.NewAnchorDecoder()}
	f := newFilter(dec, &drops)

	b := frame(t, MethodTransactionNotification, nil,
		ticketIx(t, solana.SystemProgramID.String()),
		ticketIx(t, program.String()),
		ticketIx(t, solana.TokenProgramID.String()),
	)

	got := collect(f, b)
	require.Len(t, got, 1)
	assert.Equal(t, "sig-1", got[0].Signature)
	assert.Equal(t, instruction.KindBuyTicket, got[0].Instruction.Kind())
	assert.Equal(t, 1, dec.calls)
	assert.Empty(t, drops)
}

func TestFilterDecodeFailureDoesNotAbortSiblings(t *testing.T) {
	var drops []DropReason
	dec := &countingDecoder{inner: instruction.NewAnchorDecoder()}
	f := newFilter(dec, &drops)

	bad := rawIx{ProgramID: program.String(), Data: base58.Encode([]byte{1, 2}), Accounts: nil}
	notBase58 := rawIx{ProgramID: program.String(), Data: "0OIl", Accounts: nil}
	b := frame(t, MethodTransactionNotification, nil, bad, notBase58, ticketIx(t, program.String()))

	got := collect(f, b)
	require.Len(t, got, 1)
	assert.Equal(t, []DropReason{DropDecodeFailure, DropDecodeFailure}, drops)
}

func TestFilterDecoderErrorIsAbsorbed(t *testing.T) {
	var drops []DropReason
	dec := &countingDecoder{err: errors.New("schema mismatch")}
	f := newFilter(dec, &drops)

	b := frame(t, MethodTransactionNotification, nil, ticketIx(t, program.String()), ticketIx(t, program.String()))

	assert.Empty(t, collect(f, b))
	assert.Equal(t, 2, dec.calls)
}

func TestFilterStopsWhenConsumerStops(t *testing.T) {
	dec := &countingDecoder{inner: instruction.NewAnchorDecoder()}
	f := &Filter{Program: program, Decoder: dec}

	b := frame(t, MethodTransactionNotification, nil, ticketIx(t, program.String()), ticketIx(t, program.String()))
	for range f.Instructions(b) {
		break
	}
	assert.Equal(t, 1, dec.calls)
}
