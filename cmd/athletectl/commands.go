package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	repository "github.com/wintality/athlete-testing/internal/adapters/repository"
)

const (
	defaultSeedID   = "default_test_session"
	defaultSeedName = "Preloaded Test Session"
)

var defaultSeedAthletes = []string{"athlete_1", "athlete_2"}

var (
	seedID       string
	seedName     string
	seedAthletes []string
	exportOut    string
)

// seedCmd creates the preloaded session
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the preloaded test session",
	Long: `Create a session under a fixed id with an empty record for every athlete.

Seeding an id that already exists leaves the stored session untouched.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

// sessionsCmd lists sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

// dashboardCmd prints a session's averages and rankings
var dashboardCmd = &cobra.Command{
	Use:   "dashboard <session-id>",
	Short: "Print averages and rankings of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runDashboard,
}

// exportCmd writes a session workbook
var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a session as an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func runSeed(cmd *cobra.Command, _ []string) error {
	id, err := svc.SeedSession(cmd.Context(), seedID, seedName, seedAthletes)
	if errors.Is(err, repository.ErrAlreadyExists) {
		fmt.Fprintf(cmd.OutOrStdout(), "session %s already exists\n", seedID)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded session %s with %d athletes\n", id, len(seedAthletes))
	return nil
}

func runSessions(cmd *cobra.Command, _ []string) error {
	list, err := svc.Sessions(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDATE\tATHLETES")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.CreatedAt.Format("2006-01-02 15:04"), len(s.DistinctRoster()))
	}
	return tw.Flush()
}

func runDashboard(cmd *cobra.Command, args []string) error {
	d, err := svc.Dashboard(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n\n", d.SessionName, d.SessionID)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEST\tUNIT\tAVERAGE\tN\tRANKING")
	for _, s := range d.Tests {
		if s.Average == nil {
			continue
		}
		ranking := ""
		for i, e := range s.Top {
			if i > 0 {
				ranking += ", "
			}
			ranking += fmt.Sprintf("%d. %s %s", e.Rank, e.Name, formatValue(e.Value))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.Label, s.Unit, formatValue(*s.Average), s.Participants, ranking)
	}
	return tw.Flush()
}

func runExport(cmd *cobra.Command, args []string) error {
	id := args[0]
	path := exportOut
	if path == "" {
		path = "session-" + id + ".xlsx"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := svc.ExportSession(cmd.Context(), id, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}
