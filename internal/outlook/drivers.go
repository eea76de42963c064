package outlook

import "marketdata/internal/provider"

var sectorDrivers = map[string][]string{
	"Technology": {
		"AI infrastructure spending trends",
		"Enterprise software demand",
		"Semiconductor supply dynamics",
		"Consumer tech refresh cycles",
		"Cloud computing growth rates",
	},
	"Healthcare": {
		"Drug pipeline developments",
		"Medicare/Medicaid policy changes",
		"Biotech funding environment",
		"Hospital admission trends",
		"Insurance coverage dynamics",
	},
	"Energy": {
		"OPEC+ production decisions",
		"U.S. shale output levels",
		"Global demand signals",
		"Geopolitical risk premium",
		"Energy transition policies",
	},
	"Financials": {
		"Interest rate trajectory",
		"Credit quality trends",
		"M&A activity levels",
		"Regulatory environment",
		"Consumer lending demand",
	},
	"Consumer Discretionary": {
		"Consumer confidence levels",
		"Employment trends",
		"Wage growth dynamics",
		"E-commerce penetration",
		"Discretionary spending patterns",
	},
	"Broad Market": {
		"Federal Reserve policy stance",
		"Corporate earnings trajectory",
		"Economic growth indicators",
		"Inflation trends",
		"Market breadth signals",
	},
	"Communication Services": {
		"Digital advertising spend",
		"Streaming subscriber trends",
		"Social media engagement",
		"Content investment cycles",
		"Regulatory scrutiny levels",
	},
}

// keyDrivers builds the ordered driver list: the ticker's top three
// sector factors, then a volatility note, then a performance note. The
// ticker's curated metadata supplies the sector and the baselines the
// observed stats are compared against. No randomness anywhere, identical
// input yields identical output.
func keyDrivers(ticker, volatilityLabel string, sentiment Sentiment, hitRate, band float64) []string {
	meta := provider.MetaFor(ticker)
	base := sectorDrivers[meta.Sector]

	drivers := make([]string, 0, 5)
	drivers = append(drivers, base[:3]...)

	switch volatilityLabel {
	case VolatilityHigh:
		drivers = append(drivers, "Elevated price swings observed in recent trading")
	case VolatilityLow:
		drivers = append(drivers, "Relatively stable price action in recent history")
	case VolatilityModerate:
		if band > meta.BaseVolatility {
			drivers = append(drivers, "Price swings running above this ticker's typical range")
		}
	}

	switch {
	case sentiment == SentimentPositive && hitRate > meta.UpRate:
		drivers = append(drivers, "Historical patterns show above-average positive windows")
	case sentiment == SentimentCautious && hitRate < meta.UpRate:
		drivers = append(drivers, "Recent performance below historical averages")
	}

	return drivers
}
