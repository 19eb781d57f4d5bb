package model

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/nosqlbench/vsmodel/pkg/dataspace"
	"github.com/nosqlbench/vsmodel/pkg/vserrors"
)

// ManifestFormatVersion is bumped whenever the on-disk manifest shape
// changes incompatibly.
const ManifestFormatVersion = 1

//go:embed manifest_schema.json
var manifestSchemaJSON []byte

// VectorSpaceModel is the complete, persistable output of a run: the
// per-dimension fitted models plus the dataset shape and cardinality they
// describe.
type VectorSpaceModel struct {
	FormatVersion int              `json:"format_version"`
	UniqueVectors uint64           `json:"unique_vectors"`
	Shape         dataspace.Shape  `json:"shape"`
	PerDimModels  []ScalarModel    `json:"per_dim_models"`
	GeneratedAt   time.Time        `json:"generated_at"`
	SourceDigest  string           `json:"source_digest,omitempty"`
}

// toJSON pins FormatVersion to ManifestFormatVersion on save
// regardless of what the caller populated.
func (m *VectorSpaceModel) toJSON() ([]byte, error) {
	m.FormatVersion = ManifestFormatVersion

	return json.MarshalIndent(m, "", "  ")
}

// Validate checks the manifest against the embedded JSON Schema.
func (m *VectorSpaceModel) Validate() error {
	raw, err := m.toJSON()
	if err != nil {
		return fmt.Errorf("model: marshal manifest for validation: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(manifestSchemaJSON)

	var asGo any
	if err := json.Unmarshal(raw, &asGo); err != nil {
		return fmt.Errorf("model: unmarshal manifest for validation: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(asGo))
	if err != nil {
		return fmt.Errorf("model: schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}

		return fmt.Errorf("model: manifest failed schema validation: %s: %w", strings.Join(msgs, "; "), vserrors.ErrInvalidConfig)
	}

	return nil
}

// Save validates then writes the manifest as indented JSON to path.
func (m *VectorSpaceModel) Save(path string) error {
	if err := m.Validate(); err != nil {
		return err
	}

	raw, err := m.toJSON()
	if err != nil {
		return fmt.Errorf("model: marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("model: write manifest %s: %w", path, err)
	}

	return nil
}

// LoadManifest reads and schema-validates a manifest previously written by
// Save.
func LoadManifest(path string) (*VectorSpaceModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read manifest %s: %w", path, err)
	}

	var m VectorSpaceModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("model: unmarshal manifest %s: %w: %w", path, err, vserrors.ErrInvalidConfig)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}
