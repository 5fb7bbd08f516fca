package contracts

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerZeroABI_MintOverloads(t *testing.T) {
	plain, ok := LayerZeroABI.Methods[LZMint]
	require.True(t, ok)
	assert.Equal(t, "mint()", plain.Sig)

	withRef, ok := LayerZeroABI.Methods[LZMintWithReferrer]
	require.True(t, ok)
	assert.Equal(t, "mint(address)", withRef.Sig)
}

func TestMethodSignatures(t *testing.T) {
	assert.Equal(t, "sendFrom(address,uint16,bytes,uint256,address,address,bytes)", LayerZeroABI.Methods[LZSendFrom].Sig)
	assert.Equal(t, "estimateSendFee(uint16,bytes,uint256,bool,bytes)", LayerZeroABI.Methods[LZEstimateSendFee].Sig)
	assert.Equal(t, "minDstGasLookup(uint16,uint16)", LayerZeroABI.Methods[LZMinDstGasLookup].Sig)
	assert.Equal(t, "transferRemote(uint32,bytes32,uint256)", HyperlaneABI.Methods[HLTransferRemote].Sig)
	assert.Equal(t, "batchMintWithReferrer(uint256,address)", HyperlaneABI.Methods[HLBatchMintWithReferrer].Sig)
	assert.Equal(t, TransferTopic, LayerZeroABI.Events["Transfer"].ID)
}

func TestMethodName(t *testing.T) {
	data, err := HyperlaneABI.Pack(HLClaimRefEarnings)
	require.NoError(t, err)
	assert.Equal(t, HLClaimRefEarnings, MethodName(HyperlaneABI, data))
	assert.Equal(t, "", MethodName(HyperlaneABI, []byte{1, 2}))
	assert.Equal(t, "", MethodName(LayerZeroABI, data))
}

func TestUnpackUint256(t *testing.T) {
	out, err := LayerZeroABI.Methods[LZMintFee].Outputs.Pack(big.NewInt(42))
	require.NoError(t, err)

	v, err := UnpackUint256(LayerZeroABI, LZMintFee, out)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int64())

	_, err = UnpackUint256(LayerZeroABI, LZMintFee, []byte{0x01})
	assert.Error(t, err)
}

func TestPackAdapterParams(t *testing.T) {
	params, err := PackAdapterParams(big.NewInt(200000))
	require.NoError(t, err)
	require.Len(t, params, 34)
	assert.Equal(t, "0001"+"0000000000000000000000000000000000000000000000000000000000030d40", hex.EncodeToString(params))
}

func TestPackAirdropAdapterParams(t *testing.T) {
	receiver := common.HexToAddress("0x7e67c93cd0059B9957dF63Df6418B394D1070627")
	amount := big.NewInt(138890000000000)

	params, err := PackAirdropAdapterParams(big.NewInt(200000), amount, receiver)
	require.NoError(t, err)
	require.Len(t, params, 86)

	assert.Equal(t, []byte{0x00, 0x02}, params[:2])
	assert.Equal(t, int64(200000), new(big.Int).SetBytes(params[2:34]).Int64())
	assert.Equal(t, receiver.Bytes(), params[66:])

	got, ok := AirdropAmount(params)
	require.True(t, ok)
	assert.Equal(t, amount.String(), got.String())

	_, ok = AirdropAmount(params[:34])
	assert.False(t, ok)
}

func TestPackUint256_Range(t *testing.T) {
	_, err := PackAdapterParams(big.NewInt(-1))
	assert.Error(t, err)

	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = PackAirdropAdapterParams(big.NewInt(1), tooBig, common.Address{})
	assert.Error(t, err)
}

func TestRecipientBytes32(t *testing.T) {
	addr := common.HexToAddress("0x991fC265f163fc33328FBD2b7C8aa9B77840Ed42")
	r := RecipientBytes32(addr)
	assert.Equal(t, make([]byte, 12), r[:12])
	assert.Equal(t, addr.Bytes(), r[12:])
	assert.Equal(t, common.BytesToHash(addr.Bytes()), common.Hash(r))
}

func TestPackToAddress(t *testing.T) {
	addr := common.HexToAddress("0x991fC265f163fc33328FBD2b7C8aa9B77840Ed42")
	assert.Len(t, PackToAddress(addr), 20)
}
