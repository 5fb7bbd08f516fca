package contracts

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// LZVersion is the adapter params version carrying only a destination gas amount
	LZVersion uint16 = 1

	// LZVersionAirdrop also drops native gas on the destination
	LZVersionAirdrop uint16 = 2
)

// PackToAddress encodes the LayerZero destination address as tightly packed bytes
func PackToAddress(to common.Address) []byte {
	return common.CopyBytes(to.Bytes())
}

// PackAdapterParams returns abi.encodePacked(uint16 1, uint256 minDstGas)
func PackAdapterParams(minDstGas *big.Int) ([]byte, error) {
	gas, err := packUint256(minDstGas)
	if err != nil {
		return nil, fmt.Errorf("min dst gas: %w", err)
	}
	out := make([]byte, 0, 2+32)
	out = binary.BigEndian.AppendUint16(out, LZVersion)
	return append(out, gas...), nil
}

// PackAirdropAdapterParams returns
// abi.encodePacked(uint16 2, uint256 minDstGas, uint256 nativeAmount, address receiver)
func PackAirdropAdapterParams(minDstGas, nativeAmount *big.Int, receiver common.Address) ([]byte, error) {
	gas, err := packUint256(minDstGas)
	if err != nil {
		return nil, fmt.Errorf("min dst gas: %w", err)
	}
	amount, err := packUint256(nativeAmount)
	if err != nil {
		return nil, fmt.Errorf("airdrop amount: %w", err)
	}
	out := make([]byte, 0, 2+32+32+common.AddressLength)
	out = binary.BigEndian.AppendUint16(out, LZVersionAirdrop)
	out = append(out, gas...)
	out = append(out, amount...)
	return append(out, receiver.Bytes()...), nil
}

// AirdropAmount extracts the native amount from version 2 adapter params
func AirdropAmount(params []byte) (*big.Int, bool) {
	if len(params) != 2+32+32+common.AddressLength || binary.BigEndian.Uint16(params) != LZVersionAirdrop {
		return nil, false
	}
	return new(big.Int).SetBytes(params[34:66]), true
}

// RecipientBytes32 left-pads an address into the bytes32 form Hyperlane routers take
func RecipientBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}

func packUint256(v *big.Int) ([]byte, error) {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("value %s out of uint256 range", v)
	}
	return common.LeftPadBytes(v.Bytes(), 32), nil
}
