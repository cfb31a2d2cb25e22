package enforcers

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cyphera/delegation-engine/types"
)

// Asset schemes for the balance-tracking families. Each scheme has its own
// packed terms layout, mirroring the per-asset enforcer contracts.
type assetScheme byte

const (
	nativeScheme assetScheme = iota
	erc20Scheme
	erc721Scheme
)

// Balance direction flags. The first terms byte selects whether the caveat
// requires a minimum increase or tolerates a maximum decrease.
const (
	directionIncrease byte = 0x00
	directionDecrease byte = 0x01
)

// balanceTerms is the decoded form of a balance caveat's packed terms:
//
//	native: direction(1) | recipient(20) | amount(32)
//	erc20:  direction(1) | token(20) | recipient(20) | amount(32)
//	erc721: direction(1) | token(20) | recipient(20) | tokenId(32) | amount(32)
type balanceTerms struct {
	direction byte
	asset     types.Asset
	recipient common.Address
	amount    *big.Int
}

func (t *balanceTerms) increase() bool {
	return t.direction == directionIncrease
}

func parseBalanceTerms(scheme assetScheme, terms []byte) (*balanceTerms, error) {
	var want int
	switch scheme {
	case nativeScheme:
		want = 1 + 20 + 32
	case erc20Scheme:
		want = 1 + 20 + 20 + 32
	case erc721Scheme:
		want = 1 + 20 + 20 + 32 + 32
	}
	if len(terms) != want {
		return nil, types.NewStructuralError("invalid balance terms length: got %d, want %d", len(terms), want)
	}

	direction := terms[0]
	if direction != directionIncrease && direction != directionDecrease {
		return nil, types.NewStructuralError("invalid balance direction byte 0x%02x", direction)
	}

	parsed := &balanceTerms{direction: direction}
	rest := terms[1:]

	switch scheme {
	case nativeScheme:
		parsed.asset = types.NativeAsset()
	case erc20Scheme:
		parsed.asset = types.TokenAsset(common.BytesToAddress(rest[:20]))
		rest = rest[20:]
	case erc721Scheme:
		token := common.BytesToAddress(rest[:20])
		rest = rest[20:]
		tokenID := new(big.Int).SetBytes(rest[20:52])
		parsed.asset = types.NFTAsset(token, tokenID)
	}

	parsed.recipient = common.BytesToAddress(rest[:20])
	parsed.amount = new(big.Int).SetBytes(rest[len(rest)-32:])
	return parsed, nil
}

// EncodeBalanceTerms packs balance caveat terms for a given direction,
// asset and amount. Authoring-side helper, also used by tests.
func EncodeBalanceTerms(requireIncrease bool, asset types.Asset, recipient common.Address, amount *big.Int) []byte {
	direction := directionDecrease
	if requireIncrease {
		direction = directionIncrease
	}

	terms := []byte{direction}
	if asset.Token != nil {
		terms = append(terms, asset.Token.Bytes()...)
	}
	terms = append(terms, recipient.Bytes()...)
	if asset.TokenID != nil {
		terms = append(terms, common.LeftPadBytes(asset.TokenID.Bytes(), 32)...)
	}
	terms = append(terms, common.LeftPadBytes(amount.Bytes(), 32)...)
	return terms
}

func schemeForAsset(asset types.Asset) assetScheme {
	switch {
	case asset.Token == nil:
		return nativeScheme
	case asset.TokenID == nil:
		return erc20Scheme
	default:
		return erc721Scheme
	}
}

// stateKey derives a store key from a namespace and its components.
func stateKey(namespace string, parts ...[]byte) []byte {
	data := []byte(namespace)
	for _, part := range parts {
		data = append(data, part...)
	}
	return crypto.Keccak256(data)
}

// assetKeyBytes flattens an asset identity for key derivation.
func assetKeyBytes(asset types.Asset) []byte {
	if asset.Token == nil {
		return []byte{byte(nativeScheme)}
	}
	key := []byte{byte(schemeForAsset(asset))}
	key = append(key, asset.Token.Bytes()...)
	if asset.TokenID != nil {
		key = append(key, common.LeftPadBytes(asset.TokenID.Bytes(), 32)...)
	}
	return key
}
