package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/classware/attendance/internal/config"
	"github.com/classware/attendance/internal/provider"
	"github.com/classware/attendance/internal/recognition"
	"github.com/classware/attendance/internal/refstore"
	"github.com/classware/attendance/internal/store/postgres"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Rebuild the reference embeddings for a course",
	Long: `Re-encode every student in a course from their enrollment image.
The resulting reference set replaces the previous one wholesale and is
persisted to the snapshot directory, so the server picks it up on the
next restart (or immediately when run against the same directory).

Examples:
  # Rebuild course 12
  attendance encode --course 12`,
	RunE: runEncode,
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().Int64("course", 0, "Course ID to re-encode (required)")
	encodeCmd.MarkFlagRequired("course")
}

// progressDetector ticks the bar once per detected image.
type progressDetector struct {
	inner recognition.Detector
	bar   *progressbar.ProgressBar
}

func (d *progressDetector) DetectEmbeddings(ctx context.Context, image []byte) ([][]float32, error) {
	defer d.bar.Add(1)
	return d.inner.DetectEmbeddings(ctx, image)
}

func runEncode(cmd *cobra.Command, args []string) error {
	courseID := mustGetInt64(cmd, "course")

	ctx := context.Background()
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Provider.URL == "" {
		return errors.New("EMBEDDING_URL environment variable is required")
	}

	fmt.Println("Connecting to PostgreSQL...")
	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	students := postgres.NewStudentRepository(pool)
	roster, err := students.StudentsByCourse(ctx, courseID)
	if err != nil {
		return fmt.Errorf("reading roster: %w", err)
	}
	if len(roster) == 0 {
		return fmt.Errorf("course %d has no students", courseID)
	}
	fmt.Printf("Course %d: %d students\n", courseID, len(roster))

	inputs := make([]refstore.EnrollInput, 0, len(roster))
	for _, s := range roster {
		inputs = append(inputs, refstore.EnrollInput{
			StudentID: s.ID,
			RollNo:    s.RollNo,
			Name:      s.Name,
			ImagePath: s.ImagePath,
		})
	}

	bar := progressbar.NewOptions(len(inputs),
		progressbar.OptionSetDescription("Encoding references"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("students"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
	detector := &progressDetector{
		inner: provider.New(cfg.Provider.URL, cfg.Matching.MaxImageSize),
		bar:   bar,
	}

	refs := refstore.New(cfg.Storage.SnapshotDir)
	set, outcomes, err := refs.Rebuild(ctx, courseID, inputs, detector)
	if err != nil {
		return fmt.Errorf("rebuilding course %d: %w", courseID, err)
	}
	fmt.Println()

	encoded := 0
	for _, o := range outcomes {
		if o.Status == refstore.StatusEncoded {
			encoded++
			if ref, found := set.Get(o.StudentID); found {
				if err := students.SetReferenceEmbedding(ctx, o.StudentID, ref.Vector); err != nil {
					fmt.Printf("Warning: failed to mirror embedding for %s: %v\n", o.RollNo, err)
				}
			}
			continue
		}
		fmt.Printf("Skipped %s (%s): %s\n", o.RollNo, o.Name, o.Status)
		if err := students.SetReferenceEmbedding(ctx, o.StudentID, nil); err != nil {
			fmt.Printf("Warning: failed to clear embedding for %s: %v\n", o.RollNo, err)
		}
	}

	fmt.Printf("Encoded %d/%d students, snapshot saved to %s\n", encoded, len(outcomes), cfg.Storage.SnapshotDir)
	return nil
}
