package commands

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/habit-vault/api"
	"github.com/warp/habit-vault/vault"
)

func vaultCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Inspect and adjust reward vaults",
	}
	cmd.AddCommand(vaultBalanceCommand(e))
	cmd.AddCommand(vaultHistoryCommand(e))
	cmd.AddCommand(vaultCreditCommand(e))
	cmd.AddCommand(vaultWithdrawCommand(e))
	cmd.AddCommand(vaultReverseCommand(e))
	return cmd
}

func vaultBalanceCommand(e *env) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a user's vault balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			a, err := e.get()
			if err != nil {
				return err
			}

			s, err := a.Ledger.Summary(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "balance: %s\ncredited: %s\nwithdrawn: %s\ntransactions: %d\n",
				s.Balance, s.TotalCredited, s.TotalWithdrawn, s.Transactions)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	return cmd
}

func vaultHistoryCommand(e *env) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's vault transactions, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			a, err := e.get()
			if err != nil {
				return err
			}

			txs, err := a.Ledger.History(cmd.Context(), userID)
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tTYPE\tDELTA\tWHEN\tDESCRIPTION")
			for _, tx := range txs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					tx.ID, tx.Type, tx.Delta, tx.CreatedAt.Format(time.RFC3339), tx.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	return cmd
}

// vaultCreditCommand adds a manual adjustment. A --reference makes the
// credit idempotent: running the same command twice credits once.
func vaultCreditCommand(e *env) *cobra.Command {
	var userID, amount, description, reference string

	cmd := &cobra.Command{
		Use:   "credit",
		Short: "Add a manual credit to a user's vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			a, err := e.get()
			if err != nil {
				return err
			}

			tx, err := a.Ledger.Credit(cmd.Context(), userID, value, description, reference)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "credited %s (%s)\n", tx.Delta, tx.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to credit")
	cmd.Flags().StringVar(&description, "description", "Manual adjustment", "Ledger description")
	cmd.Flags().StringVar(&reference, "reference", "", "Idempotency reference")
	return cmd
}

func vaultWithdrawCommand(e *env) *cobra.Command {
	var userID, amount, description string

	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Spend from a user's vault",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			value, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			a, err := e.get()
			if err != nil {
				return err
			}

			tx, err := a.Ledger.Withdraw(cmd.Context(), userID, value, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "withdrawn %s (%s)\n", value, tx.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount to withdraw")
	cmd.Flags().StringVar(&description, "description", "Manual withdrawal", "Ledger description")
	return cmd
}

func vaultReverseCommand(e *env) *cobra.Command {
	var userID, txID, reason string

	cmd := &cobra.Command{
		Use:   "reverse",
		Short: "Undo a vault transaction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			if err := requireFlag("tx", txID); err != nil {
				return err
			}
			a, err := e.get()
			if err != nil {
				return err
			}

			tx, err := a.Ledger.Reverse(cmd.Context(), userID, vault.TransactionID(txID), reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reversed %s with %s (%s)\n", txID, tx.ID, tx.Delta)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&txID, "tx", "", "Transaction id")
	cmd.Flags().StringVar(&reason, "reason", "Admin correction", "Reason")
	return cmd
}

// tokenCommand issues a bearer token for local development.
func tokenCommand(e *env) *cobra.Command {
	var userID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user (development)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			a, err := e.get()
			if err != nil {
				return err
			}
			if a.Config.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}

			tok, err := api.NewAuthenticator(a.Config.Auth.JWTSecret, a.Config.Auth.Issuer).Issue(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
