package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/onboard-chat/internal/assistant"
	"github.com/ashureev/onboard-chat/internal/domain"
)

var (
	showJSON bool
	listJSON bool
	listMax  int
)

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a stored conversation with everything collected so far",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		sess, err := svc.Orchestrator.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if showJSON {
			return writeJSON(cmd.OutOrStdout(), sess)
		}
		printSession(cmd.OutOrStdout(), sess)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent conversations, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		summaries, err := svc.Orchestrator.ListRecent(cmd.Context(), listMax)
		if err != nil {
			return err
		}
		if listJSON {
			return writeJSON(cmd.OutOrStdout(), summaries)
		}
		printSummaries(cmd.OutOrStdout(), summaries)
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the session as JSON")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print summaries as JSON")
	listCmd.Flags().IntVarP(&listMax, "limit", "n", 0, "maximum sessions to list (default 50)")
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSession(out io.Writer, s *domain.Session) {
	fmt.Fprintf(out, "session  %s\n", s.ID)
	fmt.Fprintf(out, "state    %s\n", s.State)
	fmt.Fprintf(out, "created  %s\n", s.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "updated  %s\n", s.UpdatedAt.Local().Format(time.DateTime))
	for _, f := range assistant.CollectedFacts(s) {
		fmt.Fprintf(out, "  %s: %s\n", f.Label, f.Value)
	}

	fmt.Fprintln(out)
	if s.Greeting != "" {
		fmt.Fprintf(out, "assistant: %s\n", s.Greeting)
	}
	for _, t := range s.Transcript {
		fmt.Fprintf(out, "%s: %s\n", t.Role, t.Content)
	}
}

func printSummaries(out io.Writer, summaries []domain.Summary) {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "no conversations")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTATE\tNAME\tVEHICLES\tMESSAGES\tUPDATED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID, s.State, s.FullName, s.VehicleCount, s.MessageCount,
			s.UpdatedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}
