package backup

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"inventory-service/internal/models"
)

// ExportFilename is the download name for a snapshot taken at t
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("firework-factory-backup-%s.json", t.UTC().Format("2006-01-02"))
}

// EncodeSnapshot renders snap in its portable, indented JSON form
func EncodeSnapshot(snap *models.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, ErrInvalidBackup
	}
	return json.MarshalIndent(snap, "", "  ")
}

// DecodeSnapshot validates data and decodes it. The validation report is
// returned alongside the error when the snapshot is not restorable.
func DecodeSnapshot(data []byte) (*models.Snapshot, *Validation, error) {
	v := ValidateJSON(data)
	if !v.IsValid {
		return nil, v, fmt.Errorf("%w: %s", ErrInvalidBackup, strings.Join(v.Errors, "; "))
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, v, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return &snap, v, nil
}
