// Package export implements the exporter (C11): atomic JSON writes of
// the engine's current alerts/chains/scans/features to a fixed
// directory layout, with the previous generation rotated into an
// archive/ subdirectory. Grounded on the teacher's
// internal/artifacts/writer.go AtomicWriter (temp-file-then-rename),
// generalised from a single timestamped artifact per call to the
// spec's fixed four-file layout plus rotation.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sawpanic/optionsignal/internal/domain"
)

// Exporter writes the engine's four top-level export files atomically
// and rotates the previous generation into archive/.
type Exporter struct {
	dir string
}

// New builds an Exporter rooted at dir, creating dir and its archive/
// subdirectory if they don't exist.
func New(dir string) (*Exporter, error) {
	if err := os.MkdirAll(filepath.Join(dir, "archive"), 0755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &Exporter{dir: dir}, nil
}

type alertsDoc struct {
	ExportTimestamp time.Time      `json:"export_timestamp"`
	AlertCount      int            `json:"alert_count"`
	Alerts          []domain.Alert `json:"alerts"`
}

type chainsDoc struct {
	ExportTimestamp time.Time              `json:"export_timestamp"`
	Chains          []domain.ChainSnapshot `json:"chains"`
}

type scansDoc struct {
	ExportTimestamp time.Time    `json:"export_timestamp"`
	Scans           []domain.Scan `json:"scans"`
}

type featureEntry struct {
	Ticker   domain.Ticker     `json:"ticker"`
	Features domain.FeatureSet `json:"features"`
}

type featuresDoc struct {
	ExportTimestamp time.Time      `json:"export_timestamp"`
	Features        []featureEntry `json:"features"`
}

// Export writes all four files, rotating the previous generation of
// each into archive/ first.
func (e *Exporter) Export(alerts []domain.Alert, chains []domain.ChainSnapshot, scans []domain.Scan, features map[domain.Ticker]domain.FeatureSet) error {
	now := time.Now().UTC()

	entries := make([]featureEntry, 0, len(features))
	for t, fs := range features {
		entries = append(entries, featureEntry{Ticker: t, Features: fs})
	}

	if err := e.writeAtomic("alerts.json", alertsDoc{ExportTimestamp: now, AlertCount: len(alerts), Alerts: alerts}); err != nil {
		return err
	}
	if err := e.writeAtomic("chains.json", chainsDoc{ExportTimestamp: now, Chains: chains}); err != nil {
		return err
	}
	if err := e.writeAtomic("scans.json", scansDoc{ExportTimestamp: now, Scans: scans}); err != nil {
		return err
	}
	if err := e.writeAtomic("features.json", featuresDoc{ExportTimestamp: now, Features: entries}); err != nil {
		return err
	}
	return nil
}

// writeAtomic rotates any existing file of the same name into
// archive/<name-without-ext>_<timestamp>.json, then writes the new
// content to a temp file in the same directory and renames it into
// place, so a reader never observes a half-written file.
func (e *Exporter) writeAtomic(name string, v interface{}) error {
	finalPath := filepath.Join(e.dir, name)

	if _, err := os.Stat(finalPath); err == nil {
		stamp := time.Now().UTC().Format("20060102_150405")
		ext := filepath.Ext(name)
		base := name[:len(name)-len(ext)]
		archivePath := filepath.Join(e.dir, "archive", fmt.Sprintf("%s_%s%s", base, stamp, ext))
		if err := os.Rename(finalPath, archivePath); err != nil {
			return fmt.Errorf("rotate %s to archive: %w", name, err)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tempPath := finalPath + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write temp file for %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("fsync temp file for %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close temp file for %s: %w", name, err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename temp to final for %s: %w", name, err)
	}
	return nil
}
