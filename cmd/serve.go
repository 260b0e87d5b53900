package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/classware/attendance/internal/config"
	"github.com/classware/attendance/internal/provider"
	"github.com/classware/attendance/internal/recognition"
	"github.com/classware/attendance/internal/refstore"
	"github.com/classware/attendance/internal/store/postgres"
	"github.com/classware/attendance/internal/video"
	"github.com/classware/attendance/internal/web"
)

// saveReferenceSnapshots re-persists every published reference set
// during shutdown, so snapshots lost or damaged at runtime are
// recreated from the in-memory state.
func saveReferenceSnapshots(refs *refstore.Repository) {
	for _, courseID := range refs.Courses() {
		if err := refs.Persist(courseID); err != nil {
			fmt.Printf("Warning: failed to save references for course %d: %v\n", courseID, err)
		}
	}
	fmt.Println("Reference snapshots saved")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance API server",
	Long: `Start the attendance HTTP API.
The API serves enrollment, reference re-encoding, and attendance taking
from classroom photos and videos.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	if err := pool.Migrate(context.Background()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	refs := refstore.New(cfg.Storage.SnapshotDir)
	restored := refs.RestoreAll()
	fmt.Printf("Restored reference sets for %d courses from %s\n", restored, cfg.Storage.SnapshotDir)

	detector := provider.New(cfg.Provider.URL, cfg.Matching.MaxImageSize)

	server := web.NewServer(web.Deps{
		Config:     cfg,
		Refs:       refs,
		Detector:   detector,
		Teachers:   postgres.NewTeacherRepository(pool),
		Courses:    postgres.NewCourseRepository(pool),
		Students:   postgres.NewStudentRepository(pool),
		Attendance: postgres.NewAttendanceRepository(pool),
		OpenVideo: func(path string) (recognition.FrameSource, error) {
			return video.OpenFile(path)
		},
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		saveReferenceSnapshots(refs)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Println("Press Ctrl+C to stop")
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
