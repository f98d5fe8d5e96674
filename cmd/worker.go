package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zakupai/supplier-search/internal/pipeline"
	"github.com/zakupai/supplier-search/internal/queue"
	"github.com/zakupai/supplier-search/internal/registry"
	"github.com/zakupai/supplier-search/pkg/anthropic"
	"github.com/zakupai/supplier-search/pkg/browser"
	"github.com/zakupai/supplier-search/pkg/yandex"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the supplier-search queue worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		labels, err := initLabels()
		if err != nil {
			return err
		}

		llm := anthropic.NewClient(cfg.Anthropic.Key)

		searchOpts := []yandex.Option{yandex.WithGroupsOnPage(cfg.Yandex.GroupsOnPage)}
		if cfg.Yandex.BaseURL != "" {
			searchOpts = append(searchOpts, yandex.WithBaseURL(cfg.Yandex.BaseURL))
		}
		search := yandex.NewClient(cfg.Yandex.Key, cfg.Yandex.FolderID, searchOpts...)

		sessions := pipeline.SessionFactory(func() browser.Session {
			return browser.NewSession()
		})

		pipe := pipeline.New(cfg.Pipeline, llm, search, sessions, labels)

		return queue.NewWorker(st, pipe, cfg.Worker).Run(ctx)
	},
}

func initLabels() (*registry.Labels, error) {
	if cfg.Registry.LabelsPath != "" {
		return registry.Load(cfg.Registry.LabelsPath)
	}
	return registry.Default()
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
