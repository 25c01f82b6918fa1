package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/MMOSHII/Face-Attendance-System/internal/config"
	"github.com/MMOSHII/Face-Attendance-System/internal/constants"
	"github.com/MMOSHII/Face-Attendance-System/internal/database"
	"github.com/MMOSHII/Face-Attendance-System/internal/recognition"
	"github.com/MMOSHII/Face-Attendance-System/internal/roster"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Build the recognition model from enrollment images",
	Long: `Compute face embeddings for every image under IMAGES_DIR/<identity_id>/
and write the HNSW model artifact to MODEL_PATH. Embeddings are also stored
in the database so the model can be rebuilt without the embedding server.

Folders whose name is not a roster identity are skipped; import the roster
first with 'face-attendance roster import'.

A running server picks up the new model on POST /api/v1/model/reload.

Examples:
  face-attendance enroll
  face-attendance enroll --images ./dataset --concurrency 3
  face-attendance enroll --from-db`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("images", "", "Enrollment images directory (default from IMAGES_DIR)")
	enrollCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of parallel embedding requests")
	enrollCmd.Flags().Bool("from-db", false, "Rebuild the model from stored embeddings only")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if dir := mustGetString(cmd, "images"); dir != "" {
		cfg.Storage.ImagesDir = dir
	}
	concurrency := mustGetInt(cmd, "concurrency")
	fromDB := mustGetBool(cmd, "from-db")

	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Attendance.Location()
	if err != nil {
		return err
	}

	ctx := context.Background()
	backend, err := openBackend(ctx, cfg, loc)
	if err != nil {
		return err
	}
	defer backend.Close()

	if fromDB && backend.Enrollments == nil {
		return fmt.Errorf("%s backend does not store embeddings", backend.Name)
	}

	var enrollments []database.StoredEnrollment
	if fromDB {
		enrollments, err = backend.Enrollments.ListEnrollments(ctx)
		if err != nil {
			return fmt.Errorf("failed to list enrollments: %w", err)
		}
	} else {
		enrollments, err = embedEnrollmentImages(ctx, cfg, backend, concurrency)
		if err != nil {
			return err
		}
	}

	if len(enrollments) == 0 {
		return fmt.Errorf("no faces enrolled, model not written")
	}
	return writeModel(cfg.Recognition.ModelPath, enrollments)
}

// embedEnrollmentImages embeds all images of known identities and stores them
// per identity. It returns every enrollment with a database ID when the
// backend stores embeddings, otherwise the fresh ones with sequential IDs.
func embedEnrollmentImages(ctx context.Context, cfg *config.Config, backend *database.Backend,
	concurrency int) ([]database.StoredEnrollment, error) {
	store := roster.New(backend.Roster)
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}

	images, err := recognition.ScanEnrollmentImages(cfg.Storage.ImagesDir)
	if err != nil {
		return nil, err
	}

	known := images[:0]
	skipped := make(map[string]bool)
	for _, img := range images {
		if store.Has(img.IdentityID) {
			known = append(known, img)
		} else if !skipped[img.IdentityID] {
			skipped[img.IdentityID] = true
			fmt.Printf("Skipping folder %s: not in roster\n", img.IdentityID)
		}
	}
	if len(known) == 0 {
		return nil, fmt.Errorf("no enrollment images for roster identities in %s", cfg.Storage.ImagesDir)
	}
	fmt.Printf("Found %d images for enrollment\n", len(known))

	bar := progressbar.NewOptions(len(known),
		progressbar.OptionSetDescription("Computing face embeddings"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	enroller := recognition.NewEnroller(recognition.NewEmbeddingClient(cfg.Recognition.EmbeddingURL),
		concurrency, constants.MaxImageSize)
	results := enroller.Embed(ctx, known, func() { _ = bar.Add(1) })
	_ = bar.Finish()
	fmt.Println()

	byIdentity := make(map[string][]database.StoredEnrollment)
	var order []string
	var noFace, failed int
	for _, res := range results {
		switch {
		case res.Err != nil:
			failed++
			fmt.Printf("  %s: %v\n", res.Image.Path, res.Err)
		case res.Enrollment == nil:
			noFace++
			fmt.Printf("  %s: no face detected\n", res.Image.Path)
		default:
			if _, ok := byIdentity[res.Image.IdentityID]; !ok {
				order = append(order, res.Image.IdentityID)
			}
			byIdentity[res.Image.IdentityID] = append(byIdentity[res.Image.IdentityID], *res.Enrollment)
		}
	}
	fmt.Printf("Embedded %d faces of %d identities (%d without face, %d errors)\n",
		len(known)-noFace-failed, len(order), noFace, failed)

	if backend.Enrollments == nil {
		var out []database.StoredEnrollment
		for _, id := range order {
			for _, e := range byIdentity[id] {
				e.ID = int64(len(out) + 1)
				out = append(out, e)
			}
		}
		return out, nil
	}

	for _, id := range order {
		if err := backend.Enrollments.ReplaceEnrollments(ctx, id, byIdentity[id]); err != nil {
			return nil, fmt.Errorf("failed to store enrollments of %s: %w", id, err)
		}
	}
	all, err := backend.Enrollments.ListEnrollments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return all, nil
}

func writeModel(path string, enrollments []database.StoredEnrollment) error {
	if path == "" {
		return fmt.Errorf("MODEL_PATH is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	idx := database.NewHNSWIndex()
	for _, e := range idx.BuildFromEnrollments(enrollments) {
		fmt.Printf("  skipped %s (%s): embedding has %d dimensions, index has %d\n",
			e.SourcePath, e.IdentityID, len(e.Embedding), idx.Dims())
	}
	if idx.IsEmpty() {
		return fmt.Errorf("no usable embeddings, model not written")
	}

	model := ""
	if len(enrollments) > 0 {
		model = enrollments[0].Model
	}
	meta := database.HNSWIndexMetadata{
		IdentityCount: idx.IdentityCount(),
		Model:         model,
		Dims:          idx.Dims(),
		BuildTime:     time.Now(),
	}
	if err := idx.Save(path, meta); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	fmt.Printf("Model written to %s: %d faces of %d identities\n", path, idx.Count(), idx.IdentityCount())
	return nil
}
