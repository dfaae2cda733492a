// Package backup writes and restores local collection archives. An
// archive is a gzipped JSON file holding cards, review states, review
// logs and settings; restoring merges it into the store without
// clobbering newer local edits.
package backup

import (
	"compress/gzip"
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cardboxapp/cardbox/internal/domain"
	"github.com/cardboxapp/cardbox/internal/store"
)

// FormatVersion is the archive format version. Increment on breaking
// changes.
const FormatVersion = "1.0"

const archiveSuffix = ".cardbox.json.gz"

// Manifest describes archive contents and metadata.
type Manifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	DeviceID  string    `json:"device_id"`
	Counts    Counts    `json:"counts"`
}

// Counts summarizes archive contents for validation and logging.
type Counts struct {
	Cards        int `json:"cards"`
	ReviewStates int `json:"review_states"`
	ReviewLogs   int `json:"review_logs"`
}

// Archive is the on-disk shape of one backup.
type Archive struct {
	Manifest Manifest              `json:"manifest"`
	Cards    []*domain.Card        `json:"cards"`
	States   []*domain.ReviewState `json:"review_states"`
	Logs     []*domain.ReviewLog   `json:"review_logs"`
	Settings *domain.Settings      `json:"settings,omitempty"`
}

// Service creates and restores archives against the local store.
type Service struct {
	store     *store.Store
	backupDir string
	logger    *slog.Logger
}

// NewService creates a Service writing archives under backupDir.
func NewService(st *store.Store, backupDir string, logger *slog.Logger) *Service {
	return &Service{
		store:     st,
		backupDir: backupDir,
		logger:    logger,
	}
}

// Result reports one completed backup.
type Result struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Counts   Counts        `json:"counts"`
	Duration time.Duration `json:"duration"`
}

// Create writes a new archive of the full local collection.
func (s *Service) Create(ctx context.Context) (*Result, error) {
	start := time.Now()

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	archive, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(s.backupDir,
		fmt.Sprintf("backup-%s%s", start.Format("2006-01-02-150405"), archiveSuffix))
	if err := writeArchive(path, archive); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	result := &Result{
		Path:     path,
		Size:     info.Size(),
		Counts:   archive.Manifest.Counts,
		Duration: time.Since(start),
	}
	s.logger.Info("backup complete",
		"path", result.Path,
		"size", result.Size,
		"cards", result.Counts.Cards,
		"duration", result.Duration,
	)
	return result, nil
}

func (s *Service) collect(ctx context.Context) (*Archive, error) {
	cards, err := s.store.ListCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	states, err := s.store.ListReviewStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list review states: %w", err)
	}
	logs, err := s.store.ListReviewLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list review logs: %w", err)
	}
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	deviceID, err := s.store.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device id: %w", err)
	}

	return &Archive{
		Manifest: Manifest{
			Version:   FormatVersion,
			CreatedAt: time.Now(),
			DeviceID:  deviceID,
			Counts: Counts{
				Cards:        len(cards),
				ReviewStates: len(states),
				ReviewLogs:   len(logs),
			},
		},
		Cards:    cards,
		States:   states,
		Logs:     logs,
		Settings: settings,
	}, nil
}

// List returns the archives under the backup directory, newest first.
func (s *Service) List() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), archiveSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(s.backupDir, e.Name()))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// Prune removes all but the keep newest archives.
func (s *Service) Prune(keep int) error {
	if keep < 1 {
		keep = 1
	}
	paths, err := s.List()
	if err != nil {
		return err
	}
	for _, path := range paths[min(keep, len(paths)):] {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old archive: %w", err)
		}
		s.logger.Debug("pruned old backup", "path", path)
	}
	return nil
}

func writeArchive(path string, archive *Archive) error {
	f, err := os.Create(path) //#nosec G304 -- path is built from the configured backup dir
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.MarshalWrite(gz, archive); err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}
	return f.Close()
}

func readArchive(path string) (*Archive, error) {
	f, err := os.Open(path) //#nosec G304 -- path chosen by the restoring user
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress archive: %w", err)
	}
	defer gz.Close()

	var archive Archive
	if err := json.UnmarshalRead(gz, &archive); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	if archive.Manifest.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported archive version %q", archive.Manifest.Version)
	}
	return &archive, nil
}
