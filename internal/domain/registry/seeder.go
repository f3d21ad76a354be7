package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/GriffinCanCode/modhost/internal/domain/module"
	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
)

// SeedFile lists catalog URLs to install on startup
type SeedFile struct {
	Modules []SeedEntry `yaml:"modules"`
}

// SeedEntry is one module to install
type SeedEntry struct {
	URL      string `yaml:"url"`
	Activate bool   `yaml:"activate"`
}

// SeedResult summarizes a seeding run
type SeedResult struct {
	Installed int
	Skipped   int
	Failed    int
}

// Seeder installs modules listed in a YAML file
type Seeder struct {
	manager *Manager
	path    string
	logger  *zap.Logger
}

// NewSeeder creates a new module seeder
func NewSeeder(manager *Manager, path string, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		manager: manager,
		path:    path,
		logger:  logger,
	}
}

// Seed installs every listed module that is not already registered. A
// missing seed file is not an error; individual install failures are
// logged and counted.
func (s *Seeder) Seed(ctx context.Context) (SeedResult, error) {
	var result SeedResult

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Seed file not found", zap.String("path", s.path))
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("failed to read seed file: %w", err)
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return result, fmt.Errorf("%w: seed file %s: %v", module.ErrDecode, s.path, err)
	}

	s.logger.Info("Seeding modules", zap.String("path", s.path), zap.Int("entries", len(file.Modules)))

	for _, entry := range file.Modules {
		if s.manager.Exists(entry.URL) {
			result.Skipped++
			continue
		}

		rec, err := s.manager.Install(ctx, entry.URL)
		if err != nil {
			s.logger.Warn("Failed to seed module", zap.String("url", entry.URL), zap.Error(err))
			result.Failed++
			continue
		}
		result.Installed++

		if entry.Activate {
			if _, err := s.manager.SetActive(rec.ID); err != nil {
				s.logger.Warn("Failed to activate seeded module", zap.String("id", rec.ID.String()), zap.Error(err))
			}
		}
	}

	s.logger.Info("Seeding complete",
		zap.Int("installed", result.Installed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}
