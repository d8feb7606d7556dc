package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAuditCmd() *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the administrative audit log",
		Long:  "Show the newest audit entries: key creations, key deletions, and admin logins.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(limit, jsonOutput)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAudit(limit int, jsonOutput bool) error {
	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open gateway store: %w", err)
	}
	defer store.Close()

	entries, err := store.ListAudit(context.Background(), limit)
	if err != nil {
		return fmt.Errorf("list audit entries: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("Audit log is empty.")
		return nil
	}

	fmt.Printf("%-20s %-14s %-20s %-24s %s\n", "TIME", "ACTION", "ACTOR", "SUBJECT", "IP")
	fmt.Printf("%-20s %-14s %-20s %-24s %s\n", "----", "------", "-----", "-------", "--")
	for _, e := range entries {
		fmt.Printf("%-20s %-14s %-20s %-24s %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.Actor, e.Subject, e.IP)
	}

	return nil
}
