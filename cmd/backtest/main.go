// cmd/backtest replays stored bar history through the signal engine and
// simulates rebalancing toward the engine's position targets, sweeping
// symbols against personality presets.
//
// Usage:
//
//	go run ./cmd/backtest --symbols=BTCUSDT --personalities=middle,aggressive --from=0
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"mag-systemv1/config"
	"mag-systemv1/internal/backtest"
	"mag-systemv1/internal/engine"
	sqlitestore "mag-systemv1/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	dbPath := flag.String("db", "data/signals.db", "Path to SQLite database")
	symbolsStr := flag.String("symbols", "", "Comma-separated symbols (default: all in DB)")
	personStr := flag.String("personalities", "", "Comma-separated personality presets (default: all)")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start from (0=all)")
	capital := flag.Float64("capital", 10000, "Initial capital per run")
	verbose := flag.Bool("trades", false, "Print every executed trade")
	flag.Parse()

	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	symbols := splitList(*symbolsStr)
	if len(symbols) == 0 {
		symbols, err = reader.Symbols()
		if err != nil || len(symbols) == 0 {
			log.Fatalf("[backtest] no symbols found: %v", err)
		}
	}

	presets := config.Load().ResolvePersonalities()
	names := splitList(*personStr)
	if len(names) == 0 {
		for name := range presets {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	runner := backtest.NewRunner(*capital)
	var results []*backtest.Result

	for _, sym := range symbols {
		bars, err := reader.ReadBars(sym, *fromTS)
		if err != nil {
			log.Printf("[backtest] read bars for %s: %v", sym, err)
			continue
		}
		if len(bars) == 0 {
			log.Printf("[backtest] no bars for %s, skipping", sym)
			continue
		}

		for _, name := range names {
			cfg, ok := presets[name]
			if !ok {
				log.Printf("[backtest] unknown personality %q, using middle defaults", name)
				cfg = engine.DefaultConfig()
			}

			res, err := runner.Run(sym, name, cfg, bars)
			if err != nil {
				log.Printf("[backtest] %s/%s failed: %v", sym, name, err)
				continue
			}
			results = append(results, res)

			if *verbose {
				for _, tr := range res.Trades {
					fmt.Printf("  [%s] %s %-4s %.4f @ %.2f → target %.0f%% (%s)\n",
						tr.TS.Format("2006-01-02 15:04"), sym, tr.Action, tr.Qty, tr.Price, tr.Target, tr.Reason)
				}
			}
		}
	}

	printSummary(results)
}

func printSummary(results []*backtest.Result) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                           BACKTEST COMPLETE                              ║")
	fmt.Println("╠═════════════╦══════════════╦════════╦══════════╦══════════╦══════════════╣")
	fmt.Println("║  Symbol     ║ Personality  ║ Trades ║ Profit % ║ Max DD % ║ Final equity ║")
	fmt.Println("╠═════════════╬══════════════╬════════╬══════════╬══════════╬══════════════╣")
	for _, r := range results {
		fmt.Printf("║ %-11s ║ %-12s ║ %6d ║ %+8.2f ║ %8.2f ║ %12.2f ║\n",
			r.Symbol, r.Personality, len(r.Trades), r.ProfitRate, r.MaxDrawdown, r.FinalValue)
	}
	if len(results) == 0 {
		fmt.Println("║                             (no runs)                                    ║")
	}
	fmt.Println("╚═════════════╩══════════════╩════════╩══════════╩══════════╩══════════════╝")
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
