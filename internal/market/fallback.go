package market

import (
	"sort"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/market/coingecko"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
)

// usdToINR is the static conversion used when fabricating INR fallback
// prices. The upstream feed reports real INR prices; the fallback only
// approximates them.
const usdToINR = 83

// fallbackQuotes is the static last-resort dataset served when the upstream
// provider is unreachable after retries. Prices are frozen snapshots and
// will drift from reality; availability beats accuracy here.
var fallbackQuotes = map[string]models.PriceQuote{
	"bitcoin": {
		ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin",
		CurrentPrice: 90617, PriceChange24h: -0.6, MarketCap: 1800000000000,
		Image: "https://assets.coingecko.com/coins/images/1/small/bitcoin.png",
		Type:  models.AssetCrypto,
	},
	"ethereum": {
		ID: "ethereum", Symbol: "ETH", Name: "Ethereum",
		CurrentPrice: 3094.17, PriceChange24h: -0.44, MarketCap: 370000000000,
		Image: "https://assets.coingecko.com/coins/images/279/small/ethereum.png",
		Type:  models.AssetCrypto,
	},
	"ripple": {
		ID: "ripple", Symbol: "XRP", Name: "XRP",
		CurrentPrice: 2.09, PriceChange24h: -0.64, MarketCap: 120000000000,
		Image: "https://assets.coingecko.com/coins/images/44/small/xrp-symbol-white-128.png",
		Type:  models.AssetCrypto,
	},
	"cardano": {
		ID: "cardano", Symbol: "ADA", Name: "Cardano",
		CurrentPrice: 0.39, PriceChange24h: -1.35, MarketCap: 14000000000,
		Image: "https://assets.coingecko.com/coins/images/975/small/cardano.png",
		Type:  models.AssetCrypto,
	},
	"solana": {
		ID: "solana", Symbol: "SOL", Name: "Solana",
		CurrentPrice: 136.41, PriceChange24h: -1.9, MarketCap: 65000000000,
		Image: "https://assets.coingecko.com/coins/images/4128/small/solana.png",
		Type:  models.AssetCrypto,
	},
	"dogecoin": {
		ID: "dogecoin", Symbol: "DOGE", Name: "Dogecoin",
		CurrentPrice: 0.14, PriceChange24h: -1.88, MarketCap: 21000000000,
		Image: "https://assets.coingecko.com/coins/images/5/small/dogecoin.png",
		Type:  models.AssetCrypto,
	},
	"litecoin": {
		ID: "litecoin", Symbol: "LTC", Name: "Litecoin",
		CurrentPrice: 152.30, PriceChange24h: 0.5, MarketCap: 11000000000,
		Image: "https://assets.coingecko.com/coins/images/2/small/litecoin.png",
		Type:  models.AssetCrypto,
	},
}

// FallbackMarkets returns the static dataset ordered by market cap
// descending, matching the ordering of the live bulk listing.
func FallbackMarkets() []models.PriceQuote {
	quotes := make([]models.PriceQuote, 0, len(fallbackQuotes))
	for _, q := range fallbackQuotes {
		quotes = append(quotes, q)
	}
	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].MarketCap > quotes[j].MarketCap
	})
	for i := range quotes {
		quotes[i].MarketCapRank = i + 1
	}
	return quotes
}

// FallbackPrices fabricates a /simple/price shaped response from the static
// dataset. Ids without fallback coverage are simply absent from the result.
func FallbackPrices(ids, vsCurrencies []string) coingecko.PriceMap {
	prices := make(coingecko.PriceMap)
	for _, id := range ids {
		quote, ok := fallbackQuotes[id]
		if !ok {
			continue
		}
		entry := make(map[string]float64)
		for _, currency := range vsCurrencies {
			switch currency {
			case "usd":
				entry["usd"] = quote.CurrentPrice
				entry["usd_24h_change"] = quote.PriceChange24h
			case "inr":
				entry["inr"] = quote.CurrentPrice * usdToINR
				entry["inr_24h_change"] = quote.PriceChange24h
			}
		}
		prices[id] = entry
	}
	return prices
}
