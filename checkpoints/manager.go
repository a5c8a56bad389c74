package checkpoints

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/tsawler/epochwatch/training"
)

// ManagerConfig configures checkpoint saving behavior
type ManagerConfig struct {
	SaveDirectory  string `json:"dir" yaml:"dir"`                           // Directory to save checkpoints
	Extension      string `json:"extension" yaml:"extension"`               // Extension of model files, e.g. ".hdf5"
	BestName       string `json:"best_name" yaml:"best_name"`               // File overwritten on every new best epoch
	LastName       string `json:"last_name" yaml:"last_name"`               // File written when training ends
	SaveEpochFiles bool   `json:"save_epoch_files" yaml:"save_epoch_files"` // Also keep one file per new best epoch
	SaveFrequency  int    `json:"save_frequency" yaml:"save_frequency"`     // Save every N epochs (0 = disabled)
	MaxCheckpoints int    `json:"max_checkpoints" yaml:"max_checkpoints"`   // Maximum number of epoch files to keep (0 = unlimited)
	KeepBestOnly   bool   `json:"keep_best_only" yaml:"keep_best_only"`     // Remove every other epoch file when training ends
}

// DefaultManagerConfig returns a sensible default configuration
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		SaveDirectory:  "./checkpoints",
		Extension:      ".hdf5",
		BestName:       "best_model",
		LastName:       "last_model",
		SaveEpochFiles: true,
		SaveFrequency:  0,
		MaxCheckpoints: 0,
	}
}

// Manager decides where model files go during training. It implements
// training.Checkpointer and training.EpochCheckpointer.
type Manager struct {
	config     ManagerConfig
	logger     logrus.FieldLogger
	bestEpoch  int
	hasBest    bool
	savedFiles []string // Epoch files in save order, for retention
}

// NewManager creates a new checkpoint manager
func NewManager(config ManagerConfig, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		logger = training.DiscardLogger()
	}
	if config.Extension == "" {
		config.Extension = ".hdf5"
	}
	return &Manager{
		config:     config,
		logger:     logger,
		savedFiles: make([]string, 0),
	}
}

// BestPath is the file holding the best model so far
func (m *Manager) BestPath() string {
	if m.config.BestName == "" {
		return ""
	}
	return filepath.Join(m.config.SaveDirectory, m.config.BestName+m.config.Extension)
}

// LastPath is the file holding the final model
func (m *Manager) LastPath() string {
	if m.config.LastName == "" {
		return ""
	}
	return filepath.Join(m.config.SaveDirectory, m.config.LastName+m.config.Extension)
}

// EpochPath is the per-epoch file for a 0-based epoch index. Files are
// numbered from 1.
func (m *Manager) EpochPath(epoch int) string {
	return filepath.Join(m.config.SaveDirectory, EpochFileName(epoch, m.config.Extension))
}

// SaveBest writes the best model file and, when enabled, a file for the epoch
func (m *Manager) SaveBest(ctx context.Context, model training.ModelSaver, rec training.EpochRecord) error {
	if err := m.ensureDirectory(); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	m.bestEpoch = rec.Epoch
	m.hasBest = true

	if path := m.BestPath(); path != "" {
		if err := model.Save(ctx, path); err != nil {
			return fmt.Errorf("failed to save best checkpoint: %w", err)
		}
	}

	if m.config.SaveEpochFiles {
		if err := m.saveEpochFile(ctx, model, rec.Epoch); err != nil {
			return err
		}
	}

	m.logger.WithFields(logrus.Fields{
		"epoch": rec.Epoch,
		"auc":   rec.Score,
		"path":  m.BestPath(),
	}).Debug("best checkpoint saved")

	return nil
}

// SaveEpoch writes a periodic checkpoint every SaveFrequency epochs
func (m *Manager) SaveEpoch(ctx context.Context, model training.ModelSaver, rec training.EpochRecord) error {
	if m.config.SaveFrequency <= 0 || (rec.Epoch+1)%m.config.SaveFrequency != 0 {
		return nil
	}
	if m.config.SaveEpochFiles && rec.NewBest {
		return nil // already written by SaveBest
	}
	if err := m.ensureDirectory(); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return m.saveEpochFile(ctx, model, rec.Epoch)
}

// SaveLast writes the final model
func (m *Manager) SaveLast(ctx context.Context, model training.ModelSaver, rec training.EpochRecord) error {
	path := m.LastPath()
	if path == "" {
		return nil
	}
	if err := m.ensureDirectory(); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	if err := model.Save(ctx, path); err != nil {
		return fmt.Errorf("failed to save last checkpoint: %w", err)
	}
	return nil
}

// SavedFiles returns the epoch files currently kept
func (m *Manager) SavedFiles() []string {
	return append([]string(nil), m.savedFiles...)
}

// CleanNonBest removes every epoch file in the save directory except the
// best epoch's.
func (m *Manager) CleanNonBest() ([]string, error) {
	if !m.hasBest {
		return nil, fmt.Errorf("no best epoch recorded")
	}
	removed, err := CleanNonBest(m.config.SaveDirectory, m.config.Extension, m.bestEpoch)
	if err != nil {
		return removed, err
	}
	m.savedFiles = m.savedFiles[:0]
	if _, statErr := os.Stat(m.EpochPath(m.bestEpoch)); statErr == nil {
		m.savedFiles = append(m.savedFiles, m.EpochPath(m.bestEpoch))
	}
	return removed, nil
}

func (m *Manager) saveEpochFile(ctx context.Context, model training.ModelSaver, epoch int) error {
	path := m.EpochPath(epoch)
	if err := model.Save(ctx, path); err != nil {
		return fmt.Errorf("failed to save checkpoint for epoch %d: %w", epoch, err)
	}

	m.savedFiles = append(m.savedFiles, path)

	if err := m.cleanupOldCheckpoints(); err != nil {
		// Don't fail the save operation
		m.logger.WithError(err).Warn("failed to cleanup old checkpoints")
	}
	return nil
}

func (m *Manager) ensureDirectory() error {
	return os.MkdirAll(m.config.SaveDirectory, 0755)
}

// cleanupOldCheckpoints removes the oldest epoch files beyond MaxCheckpoints.
// The best epoch's file is never removed.
func (m *Manager) cleanupOldCheckpoints() error {
	if m.config.MaxCheckpoints <= 0 {
		return nil // No limit
	}

	if len(m.savedFiles) <= m.config.MaxCheckpoints {
		return nil // Under limit
	}

	keep := m.savedFiles[:0]
	toRemove := len(m.savedFiles) - m.config.MaxCheckpoints
	bestPath := ""
	if m.hasBest {
		bestPath = m.EpochPath(m.bestEpoch)
	}

	var firstErr error
	for _, path := range m.savedFiles {
		if toRemove > 0 && path != bestPath {
			toRemove--
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
				firstErr = fmt.Errorf("failed to remove old checkpoint %s: %w", path, err)
			}
			continue
		}
		keep = append(keep, path)
	}
	m.savedFiles = keep

	return firstErr
}
