// Package profiles resolves template identifiers into SourceProfiles from a
// YAML file, the per-deployment catalog of known source formats.
package profiles

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/facturapass/password-assigner/constants"
	"github.com/facturapass/password-assigner/internal/common"
	"github.com/facturapass/password-assigner/internal/entity"
)

type Store struct {
	logger   *slog.Logger
	profiles map[string]*entity.SourceProfile
}

type catalog struct {
	Profiles []*entity.SourceProfile `yaml:"profiles"`
}

// Load reads the profile catalog. Profiles missing the required
// invoice-number column are rejected at load time, not at first use.
func Load(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, common.ConfigurationError(fmt.Sprintf("cannot read profile catalog %s", path), err)
	}
	var c catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, common.ConfigurationError(fmt.Sprintf("invalid profile catalog %s", path), err)
	}

	store := &Store{logger: logger, profiles: make(map[string]*entity.SourceProfile, len(c.Profiles))}
	for _, p := range c.Profiles {
		if p.ID == "" {
			return nil, common.ConfigurationErrorf("profile catalog %s contains a profile without an id", path)
		}
		if p.ColumnInvoiceNumber == "" {
			return nil, common.ConfigurationErrorf("profile %q has no invoice number column", p.ID)
		}
		if p.PasswordMode == "" {
			p.PasswordMode = constants.PasswordModeSingleColumn
		}
		store.profiles[p.ID] = p
	}

	logger.Info("profiles.loaded", "path", path, "count", len(store.profiles))
	return store, nil
}

// Resolve returns the profile for a template id; a missing id is a
// configuration error naming the id.
func (s *Store) Resolve(_ context.Context, id string) (*entity.SourceProfile, error) {
	p, ok := s.profiles[id]
	if !ok {
		return nil, common.ConfigurationErrorf("unknown template %q", id)
	}
	return p, nil
}
