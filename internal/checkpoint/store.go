package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

var (
	// ErrCheckpointWrite is wrapped by every failed save.
	ErrCheckpointWrite = errors.New("checkpoint write failed")

	// ErrCorrupt is returned when a stored checkpoint cannot be decoded.
	ErrCorrupt = errors.New("checkpoint is corrupt")
)

// Store loads and saves the current checkpoint.
type Store interface {
	// Load returns the stored checkpoint, or nil with no error when none exists.
	Load(ctx context.Context) (*model.Checkpoint, error)

	// Save atomically replaces the stored checkpoint.
	Save(ctx context.Context, cp *model.Checkpoint) error

	// Close releases the store's resources.
	Close() error
}

func encode(cp *model.Checkpoint) ([]byte, error) {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckpointWrite, err)
	}
	return append(data, '\n'), nil
}

func decode(data []byte) (*model.Checkpoint, error) {
	var cp model.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	cp.Normalize()
	return &cp, nil
}
