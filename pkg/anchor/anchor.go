// Package anchor implements the small part of the Anchor framework's wire
// conventions the watcher needs: 8-byte sighash discriminators in front of
// borsh-encoded instruction arguments and account data.
package anchor

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// DiscriminatorSize is the length of an Anchor discriminator.
const DiscriminatorSize = 8

var (
	ErrShortData             = errors.New("data shorter than discriminator")
	ErrDiscriminatorMismatch = errors.New("discriminator mismatch")
)

// Discriminator identifies an instruction or account type.
type Discriminator [DiscriminatorSize]byte

func (d Discriminator) String() string { return fmt.Sprintf("%x", d[:]) }

// Sighash computes sha256("<namespace>:<name>")[:8].
func Sighash(namespace, name string) Discriminator {
	var d Discriminator
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// InstructionDiscriminator returns the discriminator of a snake_case
// instruction name, e.g. "update_high_bid".
func InstructionDiscriminator(name string) Discriminator {
	return Sighash("global", name)
}

// AccountDiscriminator returns the discriminator of a CamelCase account
// type name, e.g. "BidEscrow".
func AccountDiscriminator(name string) Discriminator {
	return Sighash("account", name)
}

// Split separates the discriminator from the payload that follows it.
func Split(data []byte) (Discriminator, []byte, error) {
	var d Discriminator
	if len(data) < DiscriminatorSize {
		return d, nil, fmt.Errorf("%w: got %d bytes", ErrShortData, len(data))
	}
	copy(d[:], data[:DiscriminatorSize])
	return d, data[DiscriminatorSize:], nil
}

// DecodeAccount checks the account discriminator for name and borsh-decodes
// the remainder into v. Trailing bytes are ignored, since Anchor accounts are
// usually allocated larger than their current contents.
func DecodeAccount(data []byte, name string, v interface{}) error {
	d, body, err := Split(data)
	if err != nil {
		return err
	}
	if want := AccountDiscriminator(name); d != want {
		return fmt.Errorf("%w: %s is %s, got %s", ErrDiscriminatorMismatch, name, want, d)
	}
	if err := bin.NewBorshDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// DecodeArgs borsh-decodes instruction arguments following a discriminator.
func DecodeArgs(body []byte, v interface{}) error {
	return bin.NewBorshDecoder(body).Decode(v)
}

// Encode writes d followed by the borsh encoding of v. The watcher only
// reads program data; Encode builds fixtures for tests.
func Encode(d Discriminator, v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(d[:])
	if v != nil {
		if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
