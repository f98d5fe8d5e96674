package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zakupai/supplier-search/internal/queue"
)

var (
	enqueueTerms     string
	enqueueTermsFile string
	enqueueHints     []string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <purchase-id>",
	Short: "Enqueue a supplier search for a purchase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid purchase id %q", args[0])
		}

		terms := enqueueTerms
		if enqueueTermsFile != "" {
			var data []byte
			if enqueueTermsFile == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(enqueueTermsFile)
			}
			if err != nil {
				return fmt.Errorf("read terms: %w", err)
			}
			terms = strings.TrimSpace(string(data))
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		job, err := queue.New(st).EnqueueSupplierSearch(cmd.Context(), id, terms, enqueueHints)
		if err != nil {
			return err
		}

		fmt.Printf("task %d: %s\n", job.ID, job.Status)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().StringVar(&enqueueTerms, "terms", "", "search terms (default: the purchase's technical task)")
	enqueueCmd.Flags().StringVar(&enqueueTermsFile, "terms-file", "", "read search terms from file, or - for stdin")
	enqueueCmd.Flags().StringSliceVar(&enqueueHints, "hint", nil, "extra query hints (repeatable)")
	rootCmd.AddCommand(enqueueCmd)
}
