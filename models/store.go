// Package models discovers and loads the classifier artifacts for a run.
//
// A model directory holds one subdirectory per scheme. Every artifact loads
// independently: a broken scheme becomes a Failure and the rest still load.
// The resulting Store is read-only and safe for concurrent use.
package models

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/logger"
	"github.com/teranos/nrps/svm"
)

// Failure records a scheme that could not be made available.
type Failure struct {
	Scheme string `json:"scheme"`
	Path   string `json:"path,omitempty"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (f Failure) Error() string {
	return "scheme " + f.Scheme + ": " + f.Reason
}

// Store holds the loaded artifacts in column order.
type Store struct {
	artifacts []*svm.Artifact
	byScheme  map[string]*svm.Artifact
}

// NewStore orders artifacts by manifest order, then scheme name. Duplicate
// scheme names are rejected.
func NewStore(artifacts ...*svm.Artifact) (*Store, error) {
	s := &Store{byScheme: make(map[string]*svm.Artifact, len(artifacts))}
	for _, a := range artifacts {
		if _, dup := s.byScheme[a.Scheme]; dup {
			return nil, errors.Mark(errors.Newf("scheme %s loaded twice", a.Scheme), errors.ErrArtifactLoad)
		}
		s.byScheme[a.Scheme] = a
		s.artifacts = append(s.artifacts, a)
	}
	sort.SliceStable(s.artifacts, func(i, j int) bool {
		if s.artifacts[i].Order != s.artifacts[j].Order {
			return s.artifacts[i].Order < s.artifacts[j].Order
		}
		return s.artifacts[i].Scheme < s.artifacts[j].Scheme
	})
	return s, nil
}

// Len returns the number of loaded schemes.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.artifacts)
}

// Get returns the artifact for scheme.
func (s *Store) Get(scheme string) (*svm.Artifact, bool) {
	if s == nil {
		return nil, false
	}
	a, ok := s.byScheme[scheme]
	return a, ok
}

// Schemes returns the loaded scheme names in column order.
func (s *Store) Schemes() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.artifacts))
	for i, a := range s.artifacts {
		out[i] = a.Scheme
	}
	return out
}

// Artifacts returns the loaded artifacts in column order.
func (s *Store) Artifacts() []*svm.Artifact {
	if s == nil {
		return nil
	}
	return append([]*svm.Artifact(nil), s.artifacts...)
}

// Discover lists the scheme directories under dir, sorted by name. A scheme
// directory is any subdirectory containing a manifest.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithHint(
				errors.Wrapf(errors.ErrNotFound, "model directory %s", dir),
				"set models.dir or pass --models, or download a bundle with 'nrps models fetch'")
		}
		return nil, errors.Wrapf(err, "read model directory %s", dir)
	}

	var schemes []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, e.Name(), svm.ManifestFile)); err != nil {
			continue
		}
		schemes = append(schemes, e.Name())
	}
	sort.Strings(schemes)
	return schemes, nil
}

// Load loads the schemes in active from dir, or every discovered scheme when
// active is empty. Requested schemes without an artifact directory become
// failures. The error is only set when dir itself cannot be read.
func Load(dir string, active []string, log *zap.SugaredLogger) (*Store, []Failure, error) {
	log = logger.OrNop(log).Named("models")
	start := time.Now()

	discovered, err := Discover(dir)
	if err != nil {
		return nil, nil, err
	}

	var (
		failures []Failure
		targets  = discovered
	)
	if len(active) > 0 {
		present := make(map[string]bool, len(discovered))
		for _, s := range discovered {
			present[s] = true
		}
		var byManifest map[string]string
		targets = nil
		seen := make(map[string]bool, len(active))
		for _, s := range active {
			target := s
			if !present[s] {
				// Schemes are also selectable by the name their manifest declares.
				if byManifest == nil {
					byManifest = manifestNames(dir, discovered)
				}
				target = byManifest[s]
			}
			if target == "" {
				if seen[s] {
					continue
				}
				seen[s] = true
				failures = append(failures, Failure{
					Scheme: s,
					Path:   filepath.Join(dir, s),
					Reason: "no scheme directory or manifest with this name",
					Err:    errors.Mark(errors.Newf("scheme %s not found in %s", s, dir), errors.ErrArtifactLoad),
				})
				continue
			}
			if seen[target] {
				continue
			}
			seen[target] = true
			targets = append(targets, target)
		}
	}

	loaded := make([]*svm.Artifact, len(targets))
	errs := make([]error, len(targets))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, scheme := range targets {
		i, scheme := i, scheme
		g.Go(func() error {
			loaded[i], errs[i] = svm.LoadArtifact(filepath.Join(dir, scheme))
			return nil
		})
	}
	_ = g.Wait()

	var artifacts []*svm.Artifact
	for i, scheme := range targets {
		if errs[i] != nil {
			failures = append(failures, failureFrom(scheme, filepath.Join(dir, scheme), errs[i]))
			continue
		}
		artifacts = append(artifacts, loaded[i])
	}

	store, err := NewStore(artifacts...)
	if err != nil {
		// Two directories declared the same scheme; keep the first in name order.
		store, failures = dedupe(artifacts, failures)
	}

	for _, f := range failures {
		log.Warnw("Scheme unavailable", logger.FieldScheme, f.Scheme, logger.FieldReason, f.Reason)
	}
	log.Infow("Models loaded",
		logger.FieldPath, dir,
		logger.FieldCount, store.Len(),
		"failed", len(failures),
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	return store, failures, nil
}

// manifestNames maps the scheme name declared in each readable manifest to
// its directory. Names declared by more than one directory map to the first.
func manifestNames(dir string, schemeDirs []string) map[string]string {
	names := make(map[string]string, len(schemeDirs))
	for _, d := range schemeDirs {
		data, err := os.ReadFile(filepath.Join(dir, d, svm.ManifestFile))
		if err != nil {
			continue
		}
		m, err := svm.DecodeManifest(string(data))
		if err != nil || m.Scheme == "" {
			continue
		}
		if _, dup := names[m.Scheme]; !dup {
			names[m.Scheme] = d
		}
	}
	return names
}

func failureFrom(scheme, path string, err error) Failure {
	f := Failure{Scheme: scheme, Path: path, Reason: err.Error(), Err: err}
	var le *svm.LoadError
	if errors.As(err, &le) {
		f.Scheme, f.Reason = le.Scheme, le.Reason
		if le.Path != "" {
			f.Path = le.Path
		}
	}
	return f
}

func dedupe(artifacts []*svm.Artifact, failures []Failure) (*Store, []Failure) {
	seen := make(map[string]bool, len(artifacts))
	var kept []*svm.Artifact
	for _, a := range artifacts {
		if seen[a.Scheme] {
			failures = append(failures, Failure{
				Scheme: a.Scheme,
				Path:   a.Dir,
				Reason: "scheme already loaded from another directory",
				Err:    errors.Mark(errors.Newf("duplicate scheme %s", a.Scheme), errors.ErrArtifactLoad),
			})
			continue
		}
		seen[a.Scheme] = true
		kept = append(kept, a)
	}
	store, _ := NewStore(kept...)
	return store, failures
}
