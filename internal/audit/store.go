// Package audit keeps the most recent harmonization outcome and exports it.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/bizmatters/code-harmonizer/internal/harmonization"
	"github.com/bizmatters/code-harmonizer/internal/kvstore"
)

var (
	// ErrNoRecord is returned when there is nothing to export.
	ErrNoRecord = errors.New("no audit record")
	// ErrUnsupportedFormat is returned for export formats other than json and yaml.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Format is an export encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat maps a user-supplied name to a Format. Empty means JSON.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Entry is the current record together with its harmonized code
type Entry struct {
	Record         harmonization.AuditRecord `json:"record"`
	HarmonizedCode string                    `json:"harmonizedCode"`
}

// Document is the exported shape: the audit fields plus the code and the
// time of export.
type Document struct {
	harmonization.AuditRecord `yaml:",inline"`
	HarmonizedCode            string `json:"harmonizedCode" yaml:"harmonizedCode"`
	ExportTimestamp           string `json:"exportTimestamp" yaml:"exportTimestamp"`
}

// Export is an encoded document ready to download
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Store holds the latest record and harmonized code in the kv store
type Store struct {
	output *kvstore.Value[string]
	record *kvstore.Value[*harmonization.AuditRecord]
	logger *zap.Logger
}

// NewStore loads any persisted record from backend
func NewStore(ctx context.Context, backend kvstore.Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		output: kvstore.NewValue(ctx, backend, kvstore.KeyOutputCode, "", logger),
		record: kvstore.NewValue[*harmonization.AuditRecord](ctx, backend, kvstore.KeyAuditLog, nil, logger),
		logger: logger,
	}
}

// Record replaces the current record and harmonized code
func (s *Store) Record(ctx context.Context, rec harmonization.AuditRecord, harmonizedCode string) {
	s.output.Set(ctx, harmonizedCode)
	s.record.Set(ctx, &rec)
	s.logger.Debug("audit record stored",
		zap.String("timestamp", rec.Timestamp),
		zap.Int("transformations", len(rec.Transformations)),
	)
}

// Reload re-reads the record and harmonized code from the backend
func (s *Store) Reload(ctx context.Context) {
	s.output.Reload(ctx)
	s.record.Reload(ctx)
}

// Current returns the latest record, if any
func (s *Store) Current() (Entry, bool) {
	rec := s.record.Get()
	if rec == nil {
		return Entry{}, false
	}
	return Entry{Record: *rec, HarmonizedCode: s.output.Get()}, true
}

// HarmonizedCode returns the stored output, empty after Clear
func (s *Store) HarmonizedCode() string {
	return s.output.Get()
}

// Clear discards the record and empties the harmonized code. It is the
// rollback operation and leaves the source code alone.
func (s *Store) Clear(ctx context.Context) {
	s.record.Delete(ctx)
	s.output.Delete(ctx)
	s.logger.Info("audit record cleared")
}

// Export encodes the current record in format, stamped with at
func (s *Store) Export(format Format, at time.Time) (Export, error) {
	entry, ok := s.Current()
	if !ok {
		return Export{}, ErrNoRecord
	}
	doc := Document{
		AuditRecord:     entry.Record,
		HarmonizedCode:  entry.HarmonizedCode,
		ExportTimestamp: harmonization.FormatTimestamp(at),
	}

	data, err := encode(format, doc)
	if err != nil {
		return Export{}, err
	}
	return Export{
		Filename:    Filename(format, at),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// Filename builds harmonization-audit-<epoch-millis>.<ext>
func Filename(format Format, at time.Time) string {
	return fmt.Sprintf("harmonization-audit-%d.%s", at.UnixMilli(), format)
}

func encode(format Format, doc Document) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode export: %w", err)
		}
		return data, nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode export: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode export: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}
