package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tsawler/epochwatch/training"
)

// SnapshotFormat defines the serialization format
type SnapshotFormat int

const (
	FormatJSON SnapshotFormat = iota
	FormatProto
)

func (sf SnapshotFormat) String() string {
	switch sf {
	case FormatJSON:
		return "JSON"
	case FormatProto:
		return "Proto"
	default:
		return "Unknown"
	}
}

// Extension returns the file extension used for the format
func (sf SnapshotFormat) Extension() string {
	switch sf {
	case FormatProto:
		return ".pb"
	default:
		return ".json"
	}
}

// ParseFormat maps a config or flag value to a format
func ParseFormat(name string) (SnapshotFormat, error) {
	switch strings.ToLower(name) {
	case "", "json":
		return FormatJSON, nil
	case "proto", "protobuf", "pb":
		return FormatProto, nil
	default:
		return FormatJSON, fmt.Errorf("unknown snapshot format %q", name)
	}
}

// FormatFromPath picks the format from a file extension; anything other
// than .pb is read as JSON.
func FormatFromPath(path string) SnapshotFormat {
	if filepath.Ext(path) == ".pb" {
		return FormatProto
	}
	return FormatJSON
}

// Snapshot is the on-disk form of a training run's metric history
type Snapshot struct {
	Records  []training.EpochRecord              `json:"records"`
	Best     training.BestTracker                `json:"best"`
	Scores   *training.Scores                    `json:"scores,omitempty"`
	Subjects map[string][]training.SubjectRecord `json:"subjects,omitempty"`

	Metadata SnapshotMetadata `json:"metadata"`
}

// SnapshotMetadata contains snapshot metadata
type SnapshotMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	CreatedAt   time.Time `json:"created_at"`
	ModelName   string    `json:"model_name,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Host        *HostInfo `json:"host,omitempty"`
}

// NewSnapshot captures a history and its best score
func NewSnapshot(modelName string, h training.History) *Snapshot {
	return &Snapshot{
		Records: h.Records(),
		Best:    h.Best(),
		Metadata: SnapshotMetadata{
			ModelName: modelName,
		},
	}
}

// History rebuilds the training history from the stored records
func (s *Snapshot) History() training.History {
	return training.NewHistory(s.Records)
}

// Validate checks that the stored best score agrees with the records
func (s *Snapshot) Validate() error {
	h := s.History()
	prev := -1
	for i, epoch := range h.Epochs() {
		if epoch <= prev {
			return fmt.Errorf("record %d: epoch %d does not follow %d", i, epoch, prev)
		}
		prev = epoch
	}

	best := h.Best()
	if best != s.Best {
		return fmt.Errorf("stored best %+v does not match records (%+v)", s.Best, best)
	}
	return nil
}

// SnapshotSaver handles saving snapshots in various formats
type SnapshotSaver struct {
	format SnapshotFormat
}

// NewSnapshotSaver creates a new snapshot saver for the specified format
func NewSnapshotSaver(format SnapshotFormat) *SnapshotSaver {
	return &SnapshotSaver{
		format: format,
	}
}

// SaveSnapshot writes the snapshot to path
func (ss *SnapshotSaver) SaveSnapshot(snapshot *Snapshot, path string) error {
	if snapshot.Metadata.Framework == "" {
		snapshot.Metadata.Framework = "epochwatch"
		snapshot.Metadata.Version = "1.0.0"
	}
	if snapshot.Metadata.CreatedAt.IsZero() {
		snapshot.Metadata.CreatedAt = time.Now().UTC()
	}

	switch ss.format {
	case FormatJSON:
		return ss.saveJSON(snapshot, path)
	case FormatProto:
		return ss.saveProto(snapshot, path)
	default:
		return fmt.Errorf("unsupported snapshot format: %s", ss.format.String())
	}
}

// LoadSnapshot reads a snapshot from path
func (ss *SnapshotSaver) LoadSnapshot(path string) (*Snapshot, error) {
	switch ss.format {
	case FormatJSON:
		return ss.loadJSON(path)
	case FormatProto:
		return ss.loadProto(path)
	default:
		return nil, fmt.Errorf("unsupported snapshot format: %s", ss.format.String())
	}
}

// LoadSnapshotFile reads a snapshot, choosing the format by extension
func LoadSnapshotFile(path string) (*Snapshot, error) {
	return NewSnapshotSaver(FormatFromPath(path)).LoadSnapshot(path)
}

// saveJSON saves snapshot in JSON format
func (ss *SnapshotSaver) saveJSON(snapshot *Snapshot, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return nil
}

// loadJSON loads snapshot from JSON format
func (ss *SnapshotSaver) loadJSON(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(file).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &snapshot, nil
}
