package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/config"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
	"github.com/MMOSHII/Face-Attendance-System/internal/database/csvfile"
	"github.com/MMOSHII/Face-Attendance-System/internal/roster"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Manage enrolled identities",
}

var rosterImportCmd = &cobra.Command{
	Use:   "import <students.csv>",
	Short: "Import identities from a CSV file",
	Long: `Upsert identities from a CSV file with the columns
id, nama, kelas, total_kehadiran, email, nomor_telepon, waktu_kehadiran
(English names id, name, class, total_attendance, email, phone,
last_attendance are accepted too). Rows without an id get the next free
numeric id, starting at 100000.`,
	Args: cobra.ExactArgs(1),
	RunE: runRosterImport,
}

var rosterExportCmd = &cobra.Command{
	Use:   "export <students.csv>",
	Short: "Export the roster to a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRosterExport,
}

var rosterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identities",
	RunE:  runRosterList,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterImportCmd)
	rosterCmd.AddCommand(rosterExportCmd)
	rosterCmd.AddCommand(rosterListCmd)

	rosterListCmd.Flags().String("search", "", "Filter by name, class or id")
}

// openRosterBackend opens the configured backend for roster maintenance.
func openRosterBackend(ctx context.Context) (*database.Backend, *time.Location, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return nil, nil, err
	}
	backend, err := openBackend(ctx, cfg, loc)
	if err != nil {
		return nil, nil, err
	}
	return backend, loc, nil
}

func runRosterImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	backend, loc, err := openRosterBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	identities, err := csvfile.ReadRoster(f, loc)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	existing, err := backend.Roster.LoadRoster(ctx)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}
	assigned := csvfile.AssignIDs(existing, identities)

	seen := make(map[string]bool, len(identities))
	for _, ident := range identities {
		if seen[ident.ID] {
			return fmt.Errorf("duplicate id %s in %s", ident.ID, args[0])
		}
		seen[ident.ID] = true
	}

	if err := backend.Roster.SaveRoster(ctx, identities); err != nil {
		return fmt.Errorf("failed to save roster: %w", err)
	}
	fmt.Printf("Imported %d identities into %s (%d new ids assigned)\n", len(identities), backend.Name, assigned)
	return nil
}

func runRosterExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	backend, _, err := openRosterBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	store := roster.New(backend.Roster)
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[0], err)
	}
	if err := csvfile.WriteRoster(f, store.List()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", args[0], err)
	}
	fmt.Printf("Exported %d identities to %s\n", store.Len(), args[0])
	return nil
}

func runRosterList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	backend, _, err := openRosterBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	store := roster.New(backend.Roster)
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	identities := store.Search(mustGetString(cmd, "search"))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCLASS\tTOTAL\tLAST ATTENDANCE")
	for _, ident := range identities {
		last := "-"
		if ident.LastAttendance != nil {
			last = attendance.FormatTimestamp(*ident.LastAttendance)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", ident.ID, ident.Name, ident.Class, ident.TotalAttendance, last)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d identities\n", len(identities))
	return nil
}
