// Probe is a manual smoke tool: it fetches one symbol through the mock
// or live strategy and prints the payloads, bypassing the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"marketdata/internal/httpx"
	"marketdata/internal/provider"
	"marketdata/internal/provider/mockfeed"
	"marketdata/internal/provider/yahoo"
	"marketdata/internal/ratelimit"
)

func main() {
	var symbol string
	var period string
	var live bool
	var timeout int

	flag.StringVar(&symbol, "symbol", "AAPL", "ticker symbol")
	flag.StringVar(&period, "period", provider.DefaultPeriod, "history period (1D, 1W, 1M, 3M, 6M, 1Y, 3Y, 5Y)")
	flag.BoolVar(&live, "live", false, "hit the live Yahoo endpoint instead of the mock generator")
	flag.IntVar(&timeout, "timeout", 15, "request timeout seconds")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	var fetchPrice provider.PriceFetchFunc
	var fetchHistory provider.HistoryFetchFunc
	if live {
		yc := yahoo.New(
			yahoo.WithHTTPClient(httpx.New(time.Duration(timeout)*time.Second)),
			yahoo.WithLimiter(ratelimit.PerMinute(30, 2)),
		)
		fetchPrice = yc.FetchPrice
		fetchHistory = yc.FetchHistory
	} else {
		feed := mockfeed.New()
		fetchPrice = feed.FetchPrice
		fetchHistory = feed.FetchHistory
	}

	price, err := fetchPrice(ctx, provider.NormalizeSymbol(symbol))
	if err != nil {
		log.Fatalf("price: %v", err)
	}
	history, err := fetchHistory(ctx, provider.NormalizeSymbol(symbol), period)
	if err != nil {
		log.Fatalf("history: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	fmt.Println("== price ==")
	_ = enc.Encode(price)
	fmt.Printf("== history (%d points) ==\n", len(history.Points))
	if len(history.Points) > 5 {
		history.Points = history.Points[len(history.Points)-5:]
	}
	_ = enc.Encode(history)
}
