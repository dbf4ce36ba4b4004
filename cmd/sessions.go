package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"facelens/internal/journal"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSessions(cmd.Context())
	},
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "number of sessions to show")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(ctx context.Context) error {
	if cfg.Journal.DatabaseURL == "" {
		return errors.New("no journal configured (set journal.database_url, DATABASE_URL or --database-url)")
	}

	store, err := journal.New(ctx, cfg.Journal.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	list, err := store.Sessions(ctx, sessionsLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tENDED\tOBSERVATIONS\tEMOTIONS")
	fmt.Fprintln(w, "-------\t-------\t-----\t------------\t--------")
	for _, s := range list {
		ended := "-"
		if s.EndedAt != nil {
			ended = s.EndedAt.Local().Format("15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			s.SessionID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), ended, s.Observations, s.Distinct)
	}
	return w.Flush()
}
