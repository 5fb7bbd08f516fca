// Package security signs outbound payloads with the service key so that
// receivers can check who sent them and when.
package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Headers carrying the signature on HTTP requests
const (
	HeaderSignature = "X-Omnimint-Signature"
	HeaderSigner    = "X-Omnimint-Signer"
	HeaderTimestamp = "X-Omnimint-Timestamp"
)

var (
	ErrBadSignature     = errors.New("signature verification failed")
	ErrExpiredSignature = errors.New("signature expired")
)

// HashSigner is satisfied by signer.Key
type HashSigner interface {
	Address() common.Address
	SignHash(hash []byte) ([]byte, error)
}

// Signature is what travels next to a signed payload
type Signature struct {
	Signer    common.Address
	Timestamp int64
	Value     string
}

// digest is the EIP-191 personal message hash of "<unix ts>.<payload>"
func digest(payload []byte, ts int64) []byte {
	msg := append([]byte(strconv.FormatInt(ts, 10)+"."), payload...)
	return accounts.TextHash(msg)
}

// PayloadSigner signs payloads with one key
type PayloadSigner struct {
	key HashSigner
	now func() time.Time
}

func NewPayloadSigner(key HashSigner) *PayloadSigner {
	return &PayloadSigner{key: key, now: time.Now}
}

func (s *PayloadSigner) Sign(payload []byte) (Signature, error) {
	ts := s.now().Unix()
	sig, err := s.key.SignHash(digest(payload, ts))
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign payload: %w", err)
	}
	return Signature{Signer: s.key.Address(), Timestamp: ts, Value: hexutil.Encode(sig)}, nil
}

// Verify recovers the signer of payload and checks it matches sig.Signer.
// maxAge of zero skips the freshness check.
func Verify(payload []byte, sig Signature, maxAge time.Duration, now time.Time) error {
	raw, err := hexutil.Decode(sig.Value)
	if err != nil || len(raw) != crypto.SignatureLength {
		return fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}

	pub, err := crypto.SigToPub(digest(payload, sig.Timestamp), raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if got := crypto.PubkeyToAddress(*pub); got != sig.Signer {
		return fmt.Errorf("%w: signed by %s, claimed %s", ErrBadSignature, got.Hex(), sig.Signer.Hex())
	}

	if maxAge > 0 && now.Sub(time.Unix(sig.Timestamp, 0)) > maxAge {
		return ErrExpiredSignature
	}
	return nil
}
