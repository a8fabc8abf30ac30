package config

import "strings"

// Chain ids of the networks the gacha contract can be deployed to.
const (
	ChainIDMainnet     int64 = 1
	ChainIDSepolia     int64 = 11155111
	ChainIDBase        int64 = 8453
	ChainIDBaseSepolia int64 = 84532
)

// NewChainID returns the chain id for a network name, or 0 if the name is unknown.
//
// - mainnet = Ethereum main network
// - sepolia = Ethereum test network
// - base = Base main network
// - base-sepolia = Base test network
//
func NewChainID(network string) int64 {
	switch strings.ToLower(network) {
	case "mainnet":
		return ChainIDMainnet
	case "sepolia":
		return ChainIDSepolia
	case "base":
		return ChainIDBase
	case "base-sepolia", "basesepolia":
		return ChainIDBaseSepolia
	}

	return 0
}
