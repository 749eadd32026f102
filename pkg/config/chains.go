package config

// Base mainnet deployment used when no override is provided.
// Note: these are the canonical Uniswap V3 / Chainlink deployments on Base
const (
	BaseMainnetChainID = 8453

	DefaultRPCURL = "https://mainnet.base.org"

	// BaseWETHAddress is the wrapped ether predeploy
	BaseWETHAddress = "0x4200000000000000000000000000000000000006"

	// BaseQuoterV2Address is the Uniswap V3 QuoterV2
	BaseQuoterV2Address = "0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a"

	// BaseSwapRouter02Address is the Uniswap SwapRouter02
	BaseSwapRouter02Address = "0x2626664c2603336E57B271c5C0b26F421741e481"

	// BaseETHUSDFeedAddress is the Chainlink ETH / USD aggregator
	BaseETHUSDFeedAddress = "0x71041dddad3595F9CEd3DcCFBe3D1F4b0a16Bb70"
)

// chainNames maps chain IDs to their names
var chainNames = map[int]string{
	1:     "ETHEREUM",
	10:    "OPTIMISM",
	42161: "ARBITRUM",
	8453:  "BASE",
	84532: "BASE_SEPOLIA",
}

// GetChainName returns the name of the chain for a given chain ID
func GetChainName(chainID int) string {
	name, exists := chainNames[chainID]
	if !exists {
		return ""
	}
	return name
}
