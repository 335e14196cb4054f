package sources

import (
	"context"
	"fmt"
	"os"

	"github.com/engclin/melwatch/internal/mel"
)

// FileSource reads JSON exports from disk through the same normalizer as
// the HTTP source. Files are re-read on every fetch.
type FileSource struct {
	equipmentPath string
	workOrderPath string
	normalizer    *Normalizer
}

// NewFileSource creates a file-backed source.
func NewFileSource(equipmentPath, workOrderPath string, normalizer *Normalizer) *FileSource {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &FileSource{equipmentPath: equipmentPath, workOrderPath: workOrderPath, normalizer: normalizer}
}

// FetchEquipment implements EquipmentSource.
func (s *FileSource) FetchEquipment(ctx context.Context) ([]mel.Equipment, error) {
	raw, err := readRecords(ctx, s.equipmentPath)
	if err != nil {
		return nil, &mel.SourceError{Source: SourceEquipment, Err: err}
	}
	return s.normalizer.Equipment(raw), nil
}

// FetchWorkOrders implements WorkOrderSource.
func (s *FileSource) FetchWorkOrders(ctx context.Context) ([]mel.WorkOrder, error) {
	raw, err := readRecords(ctx, s.workOrderPath)
	if err != nil {
		return nil, &mel.SourceError{Source: SourceWorkOrders, Err: err}
	}
	return s.normalizer.WorkOrders(raw), nil
}

func readRecords(ctx context.Context, path string) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	records, _, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
