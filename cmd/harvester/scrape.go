package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/maltedev/marketplace-harvester/internal/api"
	"github.com/maltedev/marketplace-harvester/internal/config"
	"github.com/maltedev/marketplace-harvester/internal/parser"
	"github.com/maltedev/marketplace-harvester/internal/scraper"
	"github.com/maltedev/marketplace-harvester/internal/session"
	"github.com/maltedev/marketplace-harvester/internal/targets"
)

var errSampleFiles = errors.New("sample input files were created, fill them in and run again")

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape every pending target (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScrape(cmd.Context())
	},
}

func runScrape(ctx context.Context) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	files := a.cfg.Files

	existed, err := targets.EnsureFiles(files.Credentials, files.Targets)
	if err != nil {
		return err
	}
	filter, created, err := config.LoadFilter(files.FilterConfig)
	if err != nil {
		return err
	}
	if !existed || created {
		a.logger.Warn("sample files written",
			"credentials", files.Credentials,
			"targets", files.Targets,
			"filter", files.FilterConfig,
		)
		return errSampleFiles
	}

	creds, err := targets.LoadCredentials(files.Credentials)
	if err != nil {
		return err
	}
	list := targets.NewList(files.Targets)
	pending, err := list.Load()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		a.logger.Info("no pending targets", "file", files.Targets)
		return nil
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	resume, publisher, closeRedis, err := a.redisDeps(ctx)
	if err != nil {
		return err
	}
	defer closeRedis()

	sessions, err := session.NewStore(files.SessionsDir)
	if err != nil {
		return err
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	rotator, err := scraper.NewRotator(creds, rnd)
	if err != nil {
		return fmt.Errorf("no usable credentials in %s: %w", files.Credentials, err)
	}

	harvester := scraper.NewHarvester(scraper.HarvesterConfig{
		Launch:     a.launcher(),
		Sessions:   sessions,
		UserAgents: a.cfg.Browser.UserAgents,
		Parser:     parser.NewShopeeParser(),
		Store:      store,
		Publisher:  publisher,
		Pacer:      a.pacer(),
		Filter:     filter,
		Timing:     a.timing(),
		Metrics:    a.metrics,
		Logger:     a.logger,
		Rand:       rnd,
	})

	history := scraper.NewHistory(0)
	orch := scraper.NewOrchestrator(scraper.OrchestratorConfig{
		Rotator:     rotator,
		Runner:      harvester,
		Resume:      resume,
		Targets:     list,
		History:     history,
		Filter:      filter,
		MaxAttempts: a.cfg.Scraper.MaxAttemptsPerTarget,
		Metrics:     a.metrics,
		Logger:      a.logger,
	})

	srvCtx, stopServer := context.WithCancel(ctx)
	srvDone := make(chan struct{})
	if addr := a.cfg.Status.Addr; addr != "" {
		srv := api.NewServer(addr, history, a.metrics.Registry, a.cfg.Status.ShutdownTimeout, a.logger)
		go func() {
			defer close(srvDone)
			if err := srv.Run(srvCtx); err != nil {
				a.logger.Error("status server stopped with error", "error", err)
			}
		}()
	} else {
		close(srvDone)
	}

	a.logger.Info("starting scrape",
		"targets", len(pending),
		"credentials", rotator.Size(),
		"namespace", filter.Namespace,
		"max_page", filter.MaxPageScrape,
	)
	outcomes := orch.RunAll(ctx, pending)

	stopServer()
	<-srvDone

	renderOutcomes(os.Stdout, outcomes)
	a.logger.Info("scrape finished", "attempts", len(outcomes), "interrupted", ctx.Err() != nil)
	return nil
}
