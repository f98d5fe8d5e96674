package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	purchaseTitle    string
	purchaseTechTask string
)

var purchaseCmd = &cobra.Command{
	Use:   "purchase",
	Short: "Manage purchases",
}

var purchaseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a purchase",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		if purchaseTitle == "" {
			return fmt.Errorf("--title is required")
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := st.CreatePurchase(cmd.Context(), purchaseTitle, purchaseTechTask)
		if err != nil {
			return err
		}

		fmt.Printf("purchase %d: %s\n", p.ID, p.Status)
		return nil
	},
}

func init() {
	purchaseCreateCmd.Flags().StringVar(&purchaseTitle, "title", "", "purchase title")
	purchaseCreateCmd.Flags().StringVar(&purchaseTechTask, "tech-task", "", "technical task text")
	purchaseCmd.AddCommand(purchaseCreateCmd)
	rootCmd.AddCommand(purchaseCmd)
}
