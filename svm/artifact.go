package svm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/teranos/nrps/encoding"
	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/version"
)

const (
	// ManifestFile is the manifest name inside a scheme directory.
	ManifestFile = "manifest.toml"
	// DefaultModelFile is used when the manifest does not name a model file.
	DefaultModelFile = "model.svm"
)

// Manifest is the TOML description of one scheme's artifact.
type Manifest struct {
	FormatVersion string              `toml:"format_version"`
	Scheme        string              `toml:"scheme"`
	Description   string              `toml:"description"`
	Order         int                 `toml:"order"`
	MinConfidence float64             `toml:"min_confidence"`
	Classes       []string            `toml:"classes"`
	Dimension     int                 `toml:"dimension"`
	Encoding      encoding.Descriptor `toml:"encoding"`
	Model         struct {
		File string `toml:"file"`
	} `toml:"model"`
}

// LoadError is a structured artifact load failure.
type LoadError struct {
	Scheme string
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("scheme %s: %s", e.Scheme, e.Reason)
}

// Unwrap exposes the cause, which is always marked ErrArtifactLoad.
func (e *LoadError) Unwrap() error {
	return e.Err
}

func newLoadError(scheme, path string, err error) *LoadError {
	return &LoadError{
		Scheme: scheme,
		Path:   path,
		Reason: err.Error(),
		Err:    errors.Mark(err, errors.ErrArtifactLoad),
	}
}

// Artifact is a validated, immutable classifier for one scheme.
type Artifact struct {
	Scheme        string
	Description   string
	Order         int
	MinConfidence float64
	FormatVersion string
	Classes       []string
	Encoding      encoding.Descriptor
	Model         *Model
	// Dir is where the artifact was loaded from; empty for in-memory artifacts.
	Dir string
}

// Dimension is the feature vector length the artifact expects.
func (a *Artifact) Dimension() int {
	return a.Encoding.Dimension()
}

// DecodeManifest parses manifest TOML. Keys outside the schema are rejected.
func DecodeManifest(data string) (Manifest, error) {
	var m Manifest
	md, err := toml.Decode(data, &m)
	if err != nil {
		return Manifest{}, errors.Wrap(err, "decode manifest")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Manifest{}, errors.Newf("unknown manifest keys: %s", strings.Join(keys, ", "))
	}
	return m, nil
}

// CheckFormatVersion verifies the manifest format against what this build reads.
func CheckFormatVersion(v string) error {
	if v == "" {
		return errors.New("format_version is missing")
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return errors.Wrapf(err, "invalid format_version %s", v)
	}
	constraint, err := semver.NewConstraint(version.ArtifactFormatConstraint)
	if err != nil {
		return errors.Wrapf(err, "invalid format constraint %s", version.ArtifactFormatConstraint)
	}
	if !constraint.Check(ver) {
		return errors.WithHint(
			errors.Newf("format_version %s is not supported (need %s)", v, version.ArtifactFormatConstraint),
			"re-export the model with a compatible trainer or upgrade nrps")
	}
	return nil
}

// LoadArtifact reads dir/manifest.toml and the model file it names. The
// scheme defaults to the directory name. Any failure is a *LoadError and
// nothing partial is returned.
func LoadArtifact(dir string) (*Artifact, error) {
	scheme := filepath.Base(dir)
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, newLoadError(scheme, manifestPath, errors.Wrap(err, "read manifest"))
	}
	manifest, err := DecodeManifest(string(data))
	if err != nil {
		return nil, newLoadError(scheme, manifestPath, err)
	}
	if manifest.Scheme == "" {
		manifest.Scheme = scheme
	}
	// Validate the manifest before touching a possibly large model file.
	if err := validateManifest(manifest); err != nil {
		return nil, newLoadError(manifest.Scheme, manifestPath, err)
	}

	file := manifest.Model.File
	if file == "" {
		file = DefaultModelFile
	}
	modelPath := filepath.Join(dir, file)
	f, err := os.Open(modelPath)
	if err != nil {
		return nil, newLoadError(manifest.Scheme, modelPath, errors.Wrap(err, "open model"))
	}
	defer f.Close()

	model, err := ParseModel(f, manifest.Dimension)
	if err != nil {
		return nil, newLoadError(manifest.Scheme, modelPath, err)
	}

	a, err := NewArtifact(manifest, model)
	if err != nil {
		return nil, err
	}
	a.Dir = dir
	return a, nil
}

// NewArtifact validates a manifest against a model and assembles the
// artifact. The model gets the same checks ParseModel applies, so one built
// in memory cannot make Classify index out of range.
func NewArtifact(m Manifest, model *Model) (*Artifact, error) {
	if err := validateManifest(m); err != nil {
		return nil, newLoadError(m.Scheme, "", err)
	}
	if model == nil {
		return nil, newLoadError(m.Scheme, "", errors.New("no model"))
	}
	if err := model.checkShape(); err != nil {
		return nil, newLoadError(m.Scheme, "", err)
	}
	if err := model.checkVectors(m.Dimension); err != nil {
		return nil, newLoadError(m.Scheme, "", err)
	}
	if err := validateLabels(m.Classes, model); err != nil {
		return nil, newLoadError(m.Scheme, "", err)
	}
	if model.start == nil {
		model.index()
	}

	return &Artifact{
		Scheme:        m.Scheme,
		Description:   m.Description,
		Order:         m.Order,
		MinConfidence: m.MinConfidence,
		FormatVersion: m.FormatVersion,
		Classes:       append([]string(nil), m.Classes...),
		Encoding:      m.Encoding,
		Model:         model,
	}, nil
}

func validateManifest(m Manifest) error {
	if err := CheckFormatVersion(m.FormatVersion); err != nil {
		return err
	}
	if strings.TrimSpace(m.Scheme) == "" {
		return errors.New("scheme is empty")
	}
	if len(m.Classes) < 2 {
		return errors.Newf("need at least 2 classes, got %d", len(m.Classes))
	}
	seen := make(map[string]bool, len(m.Classes))
	for _, c := range m.Classes {
		if c == "" {
			return errors.New("empty class name")
		}
		if seen[c] {
			return errors.Newf("class %q declared twice", c)
		}
		seen[c] = true
	}
	if m.MinConfidence < 0 || m.MinConfidence > 1 {
		return errors.Newf("min_confidence %g is outside [0,1]", m.MinConfidence)
	}
	if err := m.Encoding.Validate(); err != nil {
		return errors.Wrap(err, "encoding")
	}
	if want := m.Encoding.Dimension(); m.Dimension != want {
		return errors.Newf("dimension %d does not match encoding %s (%d features)", m.Dimension, m.Encoding, want)
	}
	return nil
}

// validateLabels checks that every model label names a declared class once.
// A repeated label would give two decision functions for the same class pair.
func validateLabels(classes []string, model *Model) error {
	if model.NrClass != len(classes) {
		return errors.Newf("model has %d classes but the manifest declares %d", model.NrClass, len(classes))
	}
	seen := make(map[int]bool, len(model.Labels))
	for _, l := range model.Labels {
		if l < 0 || l >= len(classes) {
			return errors.Newf("label %d does not name a declared class (0..%d)", l, len(classes)-1)
		}
		if seen[l] {
			return errors.Newf("label %d (%s) appears twice", l, classes[l])
		}
		seen[l] = true
	}
	return nil
}
