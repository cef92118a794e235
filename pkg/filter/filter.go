// Package filter turns raw transactionNotification frames into decoded
// instructions of the watched program.
package filter

import (
	"iter"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/radiantsdao/burnwatch/pkg/instruction"
	"github.com/radiantsdao/burnwatch/pkg/logging"
	"github.com/tidwall/gjson"
)

// MethodTransactionNotification is the method tag of the frames we process.
const MethodTransactionNotification = "transactionNotification"

// DropReason says why a frame or instruction produced nothing.
type DropReason string

const (
	DropInvalidJSON   DropReason = "invalid_json"
	DropWrongMethod   DropReason = "wrong_method"
	DropFailedTx      DropReason = "failed_tx"
	DropDecodeFailure DropReason = "decode_failure"
)

// Decoded is one instruction of the watched program along with the
// signature of the transaction that carried it.
type Decoded struct {
	Signature   string
	Instruction instruction.Instruction
}

// Filter extracts instructions addressed to Program from notification
// frames.
type Filter struct {
	Program solana.PublicKey
	Decoder instruction.Decoder
	Log     logging.Logger
	// OnDrop, if set, is called whenever a frame or instruction is
	// discarded.
	OnDrop func(DropReason)
}

func (f *Filter) log() logging.Logger { return logging.OrNop(f.Log) }

func (f *Filter) drop(r DropReason) {
	if f.OnDrop != nil {
		f.OnDrop(r)
	}
}

// Instructions lazily yields the decoded instructions in frame. Malformed,
// irrelevant and failed transactions yield nothing; an instruction that
// fails to decode is logged and skipped without affecting its siblings.
func (f *Filter) Instructions(frame []byte) iter.Seq[Decoded] {
	return func(yield func(Decoded) bool) {
		if !gjson.ValidBytes(frame) {
			f.log().Warnf("Dropping frame: invalid JSON (%d bytes)", len(frame))
			f.drop(DropInvalidJSON)
			return
		}
		env := gjson.ParseBytes(frame)

		method := env.Get("method").String()
		if method != MethodTransactionNotification {
			if id := env.Get("result"); method == "" && id.Exists() {
				f.log().Infof("Subscription confirmed, id %s", id.Raw)
			} else {
				f.log().Debugf("Dropping frame with method %q: not a transaction notification", method)
			}
			f.drop(DropWrongMethod)
			return
		}

		tx := env.Get("params.result.transaction")
		signature := tx.Get("transaction.signatures.0").String()
		if signature == "" {
			signature = env.Get("params.result.signature").String()
		}
		f.log().Debugf("Processing tx: %s", signature)

		// A meta without an explicit null err is treated as failed.
		if meta := tx.Get("meta"); meta.Type != gjson.Null {
			if txErr := meta.Get("err"); !txErr.Exists() || txErr.Type != gjson.Null {
				f.log().Debugf("Skipping failed tx %s: err %s", signature, txErr.Raw)
				f.drop(DropFailedTx)
				return
			}
		}

		program := f.Program.String()
		for i, raw := range tx.Get("transaction.message.instructions").Array() {
			if raw.Get("programId").String() != program {
				continue
			}
			ix, ok := f.decode(signature, i, raw)
			if !ok {
				continue
			}
			if !yield(Decoded{Signature: signature, Instruction: ix}) {
				return
			}
		}
	}
}

func (f *Filter) decode(signature string, index int, raw gjson.Result) (instruction.Instruction, bool) {
	data, err := base58.Decode(raw.Get("data").String())
	if err != nil {
		f.log().Warnf("Failed to decode instruction %d for signature %s: bad base58: %v", index, signature, err)
		f.drop(DropDecodeFailure)
		return nil, false
	}

	accountsRaw := raw.Get("accounts").Array()
	accounts := make([]string, 0, len(accountsRaw))
	for _, a := range accountsRaw {
		accounts = append(accounts, a.String())
	}

	ix, err := f.Decoder.Decode(data, accounts)
	if err != nil {
		f.log().Warnf("Failed to decode instruction %d for signature %s: %v", index, signature, err)
		f.drop(DropDecodeFailure)
		return nil, false
	}
	f.log().Debugf("Decoded ix name: %s (%s)", ix.Name(), signature)
	return ix, true
}
