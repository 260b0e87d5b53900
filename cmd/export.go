package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classware/attendance/internal/config"
	"github.com/classware/attendance/internal/store"
	"github.com/classware/attendance/internal/store/postgres"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a course's attendance history to CSV",
	Long: `Export the full attendance history for a course as a CSV file.

Examples:
  # Export course 12 to attendance.csv
  attendance export --course 12 --out attendance.csv`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().Int64("course", 0, "Course ID to export (required)")
	exportCmd.Flags().String("out", "attendance.csv", "Output CSV file")
	exportCmd.MarkFlagRequired("course")
}

func runExport(cmd *cobra.Command, args []string) error {
	courseID := mustGetInt64(cmd, "course")
	outPath := mustGetString(cmd, "out")

	ctx := context.Background()
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	roster, err := postgres.NewStudentRepository(pool).StudentsByCourse(ctx, courseID)
	if err != nil {
		return fmt.Errorf("reading roster: %w", err)
	}
	records, err := postgres.NewAttendanceRepository(pool).AttendanceByCourse(ctx, courseID)
	if err != nil {
		return fmt.Errorf("reading attendance: %w", err)
	}

	byID := make(map[int64]store.Student, len(roster))
	for _, s := range roster {
		byID[s.ID] = s
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	writer := csv.NewWriter(out)
	writer.Write([]string{"Roll No", "Name", "Date", "Time", "Status"})
	rows := 0
	for _, rec := range records {
		s, found := byID[rec.StudentID]
		if !found {
			continue
		}
		writer.Write([]string{s.RollNo, s.Name, rec.Date, rec.MarkedAt, string(rec.Status)})
		rows++
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}

	fmt.Printf("Exported %d attendance rows to %s\n", rows, outPath)
	return nil
}
