// Command filtercache prints one page of the people listing as JSON.
//
//	filtercache -month 5 -year 2000 -page 2
//
// Settings come from the environment (see internal/config). With -serve the
// process keeps running and exposes /metrics on METRICS_ADDR.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unkn0wn-root/filtercache"
	"github.com/unkn0wn-root/filtercache/internal/app"
	"github.com/unkn0wn-root/filtercache/internal/config"
	"github.com/unkn0wn-root/filtercache/people"
)

type output struct {
	filtercache.Page[people.Person]
	LastPage int `json:"last_page"`
	From     int `json:"from"`
	To       int `json:"to"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "filtercache:", err)
		os.Exit(1)
	}
}

func run() error {
	month := flag.Int("month", 0, "birthday month 1..12; 0 = any")
	year := flag.Int("year", 0, "birthday year 1900..2022; 0 = any")
	page := flag.Int("page", 1, "page number, from 1")
	migrate := flag.Bool("migrate", false, "apply schema migrations first")
	wait := flag.Bool("wait", true, "wait for a started population before exiting")
	serve := flag.Bool("serve", false, "keep serving /metrics until interrupted")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	a, err := app.Build(ctx, cfg, app.BuildOptions{Migrate: *migrate, LogOut: os.Stderr})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			fmt.Fprintln(os.Stderr, "filtercache: close:", err)
		}
	}()

	p, err := a.Page(ctx, people.NewFilter(*month, *year), *page)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output{Page: p, LastPage: p.LastPage(), From: p.From(), To: p.To()}); err != nil {
		return err
	}

	if *wait && p.Population != nil {
		if err := p.Population.Wait(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "filtercache: population:", err)
		}
	}
	if *serve {
		return a.ServeMetrics(ctx)
	}
	return nil
}
