package core

import (
	"fmt"
	"strings"
)

// NativeCode and NativeIssuer identify the ledger's native asset in
// serialized keys.
const (
	NativeCode   = "XLM"
	NativeIssuer = "native"
)

// Asset is either the native ledger asset or a (code, issuer) pair.
type Asset struct {
	Code   string
	Issuer string
}

// NativeAsset returns the native ledger asset.
func NativeAsset() Asset {
	return Asset{Code: NativeCode, Issuer: NativeIssuer}
}

// IsNative reports whether the asset is the native ledger asset.
func (a Asset) IsNative() bool {
	return a.Code == NativeCode && a.Issuer == NativeIssuer
}

// String serializes the asset as CODE_ISSUER; the native asset is
// rendered as XLM_native.
func (a Asset) String() string {
	return a.Code + "_" + a.Issuer
}

// TradingPair is an ordered pair of assets traded against each other.
type TradingPair struct {
	Base    Asset
	Counter Asset
}

// Key serializes the pair as baseCode_baseIssuer_counterCode_counterIssuer.
func (p TradingPair) Key() string {
	return p.Base.String() + "_" + p.Counter.String()
}

// ParsePairKey parses a serialized trading pair key back into a TradingPair.
func ParsePairKey(key string) (TradingPair, error) {
	parts := strings.Split(key, "_")
	if len(parts) != 4 {
		return TradingPair{}, fmt.Errorf("%w: %q", ErrInvalidPairKey, key)
	}

	for _, part := range parts {
		if part == "" {
			return TradingPair{}, fmt.Errorf("%w: %q", ErrInvalidPairKey, key)
		}
	}

	return TradingPair{
		Base:    Asset{Code: parts[0], Issuer: parts[1]},
		Counter: Asset{Code: parts[2], Issuer: parts[3]},
	}, nil
}
