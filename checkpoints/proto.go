package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// saveProto writes the snapshot as a binary protobuf Struct. The snapshot is
// first flattened to its JSON object form so both formats share one schema.
func (ss *SnapshotSaver) saveProto(snapshot *Snapshot, path string) error {
	msg, err := snapshotToStruct(snapshot)
	if err != nil {
		return err
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal protobuf snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write protobuf snapshot: %w", err)
	}

	return nil
}

// loadProto loads a snapshot written by saveProto
func (ss *SnapshotSaver) loadProto(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read protobuf snapshot: %w", err)
	}

	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal protobuf snapshot: %w", err)
	}

	return structToSnapshot(&msg)
}

func snapshotToStruct(snapshot *Snapshot) (*structpb.Struct, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten snapshot: %w", err)
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build protobuf struct: %w", err)
	}
	return msg, nil
}

func structToSnapshot(msg *structpb.Struct) (*Snapshot, error) {
	raw, err := json.Marshal(msg.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to encode protobuf fields: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}
