package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/churn-cli/internal/store"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage web UI accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an account in the configured store",
	RunE:  runAccountAdd,
}

func init() {
	f := accountAddCmd.Flags()
	f.String("email", "", "login email")
	f.String("password", "", "login password")
	f.String("username", "", "full name")
	f.String("company", "", "organization")
	f.String("role", "Analyst", "Analyst, Manager, Director or Executive")
	f.String("experience", "0-2 years", "0-2 years, 3-5 years, 6-10 years or 10+ years")
	_ = accountAddCmd.MarkFlagRequired("email")
	_ = accountAddCmd.MarkFlagRequired("password")

	accountCmd.AddCommand(accountAddCmd)
	rootCmd.AddCommand(accountCmd)
}

func runAccountAdd(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate("account"); err != nil {
		return err
	}

	f := cmd.Flags()
	var reg store.Registration
	reg.Email, _ = f.GetString("email")
	reg.Password, _ = f.GetString("password")
	reg.Username, _ = f.GetString("username")
	reg.Company, _ = f.GetString("company")
	reg.Role, _ = f.GetString("role")
	reg.Experience, _ = f.GetString("experience")

	st, err := initStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	acct, err := st.CreateAccount(cmd.Context(), reg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "account created: %s (%s)\n", acct.Email, acct.Role)
	return err
}
