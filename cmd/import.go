package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classware/attendance/internal/config"
	"github.com/classware/attendance/internal/store"
	"github.com/classware/attendance/internal/store/mis"
	"github.com/classware/attendance/internal/store/postgres"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a course roster from the school MIS",
	Long: `Import students for a course from the school's MIS database.
Imported students have no enrollment image yet; upload one per student
through the API (or re-run with updated images) before encoding.

Students already present in the course (same roll number) are skipped,
so the import is safe to re-run after the MIS roster changes.

Examples:
  # Import MIS class 10-A into course 12
  attendance import --course 12 --class-code 10-A`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Int64("course", 0, "Target course ID (required)")
	importCmd.Flags().String("class-code", "", "MIS class code to import (required)")
	importCmd.MarkFlagRequired("course")
	importCmd.MarkFlagRequired("class-code")
}

func runImport(cmd *cobra.Command, args []string) error {
	courseID := mustGetInt64(cmd, "course")
	classCode := mustGetString(cmd, "class-code")

	ctx := context.Background()
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.MIS.DSN == "" {
		return errors.New("MIS_DATABASE_DSN environment variable is required")
	}

	fmt.Println("Connecting to PostgreSQL...")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	courses := postgres.NewCourseRepository(pool)
	if _, err := courses.CourseByID(ctx, courseID); err != nil {
		return fmt.Errorf("looking up course %d: %w", courseID, err)
	}

	fmt.Println("Connecting to MIS database...")
	misPool, err := mis.NewPool(cfg.MIS.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to MIS: %w", err)
	}
	defer misPool.Close()

	roster, err := misPool.Roster(ctx, classCode)
	if err != nil {
		return fmt.Errorf("reading MIS roster for class %s: %w", classCode, err)
	}
	fmt.Printf("MIS class %s: %d students\n", classCode, len(roster))

	students := postgres.NewStudentRepository(pool)
	imported, skipped := 0, 0
	for _, member := range roster {
		_, err := students.CreateStudent(ctx, store.Student{
			CourseID: courseID,
			RollNo:   member.RollNo,
			Name:     member.Name,
		})
		if errors.Is(err, store.ErrDuplicate) {
			skipped++
			continue
		}
		if err != nil {
			return fmt.Errorf("importing %s (%s): %w", member.RollNo, member.Name, err)
		}
		imported++
	}

	fmt.Printf("Imported %d students into course %d (%d already present)\n", imported, courseID, skipped)
	return nil
}
