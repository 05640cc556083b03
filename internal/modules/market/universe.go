package market

import "github.com/aristath/cryptopilot/internal/domain"

// DefaultUniverse is the supported asset set, as CoinGecko ids, in priority order.
var DefaultUniverse = []string{
	"bitcoin", "ethereum", "dogecoin", "litecoin", "bitcoin-cash", "ethereum-classic",
	"chainlink", "stellar", "zcash", "compound", "uniswap", "aave", "polygon", "solana",
	"shiba-inu", "avalanche-2", "cardano", "polkadot", "algorand", "cosmos", "tezos",
	"the-graph", "yearn-finance", "sushiswap", "1inch", "maker", "curve-dao-token",
	"balancer", "0x", "basic-attention-token", "orchid-protocol", "numeraire", "livepeer",
	"loopring", "skale", "bancor", "kyber-network-crystal", "augur", "district0x", "civic",
	"storj", "decentraland", "enjincoin", "chiliz", "fetch-ai", "nucypher", "cartesi",
	"the-sandbox", "axie-infinity", "internet-computer", "filecoin", "helium", "near",
	"flow", "theta-token", "vechain", "zilliqa", "qtum", "omisego", "ontology", "icon",
	"status", "golem", "request-network", "power-ledger", "origin-protocol", "metal",
	"aragon", "gnosis", "polymath", "loom-network-new",
}

// FallbackSymbols are the assets always covered when the price API is unavailable
var FallbackSymbols = []string{"bitcoin", "ethereum", "dogecoin"}

// FallbackSnapshots returns plausible static readings for the fallback assets
func FallbackSnapshots() map[string]domain.AssetSnapshot {
	return map[string]domain.AssetSnapshot{
		"bitcoin": {
			Symbol:    "bitcoin",
			Price:     45000.0,
			Change24h: 2.5,
			MarketCap: 850000000000,
			Volume24h: 25000000000,
			HasPrice:  true,
		},
		"ethereum": {
			Symbol:    "ethereum",
			Price:     3200.0,
			Change24h: 1.8,
			MarketCap: 380000000000,
			Volume24h: 15000000000,
			HasPrice:  true,
		},
		"dogecoin": {
			Symbol:    "dogecoin",
			Price:     0.08,
			Change24h: -0.5,
			MarketCap: 11000000000,
			Volume24h: 500000000,
			HasPrice:  true,
		},
	}
}
