// Package signer holds the key that signs transactions on behalf of the
// connected wallet: a raw private key or one derived from a BIP-39 mnemonic.
package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultDerivationPath is the first account of the standard Ethereum path
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

var ErrNoKey = errors.New("no signing key configured")

// Key signs transactions for a single account
type Key struct {
	priv    *ecdsa.PrivateKey
	address common.Address
}

// Load picks the private key when set, otherwise derives from the mnemonic
func Load(privateKeyHex, mnemonic string) (*Key, error) {
	switch {
	case strings.TrimSpace(privateKeyHex) != "":
		return FromPrivateKey(privateKeyHex)
	case strings.TrimSpace(mnemonic) != "":
		return FromMnemonic(mnemonic, DefaultDerivationPath)
	}
	return nil, ErrNoKey
}

// FromPrivateKey parses a hex private key, with or without 0x prefix
func FromPrivateKey(hexKey string) (*Key, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	priv, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return newKey(priv), nil
}

// FromMnemonic derives the key at path from a BIP-39 mnemonic
func FromMnemonic(mnemonic, path string) (*Key, error) {
	seed, err := bip39.NewSeedWithErrorChecking(strings.TrimSpace(mnemonic), "")
	if err != nil {
		return nil, fmt.Errorf("mnemonic: %w", err)
	}

	dpath, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("derivation path %q: %w", path, err)
	}

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	for _, n := range dpath {
		key, err = key.Derive(n)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", path, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	return newKey(priv.ToECDSA()), nil
}

func newKey(priv *ecdsa.PrivateKey) *Key {
	return &Key{priv: priv, address: crypto.PubkeyToAddress(priv.PublicKey)}
}

func (k *Key) Address() common.Address { return k.address }

// SignHash produces a 65-byte [R || S || V] secp256k1 signature over a 32-byte hash
func (k *Key) SignHash(hash []byte) ([]byte, error) {
	return crypto.Sign(hash, k.priv)
}

// SignTx signs tx with the latest signer for chainID
func (k *Key) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), k.priv)
}
