// Package refcode converts account addresses into compact referral tokens and back.
//
// A token is the raw 20 address bytes in URL-safe base64 without padding.
// Input that is not exactly 20 bytes is rejected in both directions.
// Both directions return an empty string on malformed input; callers must
// treat "" as failure and never as a valid token or address.
package refcode

import (
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// RefQueryParam is the query parameter a referral link carries its token in
const RefQueryParam = "ref"

// Encode turns a hex address (with or without 0x) into a referral token
func Encode(address string) string {
	if !common.IsHexAddress(address) {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(common.HexToAddress(address).Bytes())
}

// Decode turns a referral token back into a lowercase 0x-prefixed address
func Decode(token string) string {
	if token == "" {
		return ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil || len(raw) != common.AddressLength {
		return ""
	}
	return "0x" + hex.EncodeToString(raw)
}

// Link builds a shareable referral link for the address
func Link(origin, address string) string {
	token := Encode(address)
	if token == "" {
		return ""
	}
	return strings.TrimRight(origin, "/") + "/?" + RefQueryParam + "=" + token
}

// FromLink extracts and decodes the referrer address from a referral link
func FromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return Decode(u.Query().Get(RefQueryParam))
}
