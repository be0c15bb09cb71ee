package models

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-getter"
	"go.uber.org/zap"

	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/internal/httpclient"
	"github.com/teranos/nrps/logger"
)

// FetchOptions tunes how Fetch downloads over http(s).
type FetchOptions struct {
	Timeout time.Duration
	// AllowPrivate permits http(s) sources on loopback or private networks.
	AllowPrivate bool
}

// FetchResult describes an installed model bundle.
type FetchResult struct {
	Source   string    `json:"source"`
	Detected string    `json:"detected"`
	Dir      string    `json:"dir"`
	Schemes  []string  `json:"schemes"`
	Failures []Failure `json:"failures,omitempty"`
}

// Fetch downloads a model bundle from src into dst. src is anything go-getter
// understands: a local directory, an http(s) archive, a git URL, s3, gcs.
// The bundle is unpacked next to dst, validated, and only then moved into
// place, so dst is never left half-written. dst must not exist or be empty.
func Fetch(ctx context.Context, src, dst string, opts FetchOptions, log *zap.SugaredLogger) (*FetchResult, error) {
	log = logger.OrNop(log).Named("models")

	if err := checkEmpty(dst); err != nil {
		return nil, err
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}
	detected, err := getter.Detect(src, pwd, getter.Detectors)
	if err != nil {
		return nil, errors.Wrapf(err, "detect source type of %s", src)
	}
	log.Debugw("go-getter detected source", "input", src, "detected", detected)

	parent := filepath.Dir(dst)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create %s", parent)
	}
	staging, err := os.MkdirTemp(parent, ".nrps-fetch-*")
	if err != nil {
		return nil, errors.Wrap(err, "create staging directory")
	}
	defer os.RemoveAll(staging)

	// Local directories are copied rather than symlinked so the bundle
	// survives the source being moved.
	getters := make(map[string]getter.Getter, len(getter.Getters))
	for name, g := range getter.Getters {
		getters[name] = g
	}
	getters["file"] = &getter.FileGetter{Copy: true}
	web := &getter.HttpGetter{
		Client: httpclient.New(httpclient.Options{
			Timeout:      opts.Timeout,
			AllowPrivate: opts.AllowPrivate,
		}),
		XTerraformGetDisabled: true,
	}
	getters["http"] = web
	getters["https"] = web

	bundle := filepath.Join(staging, "bundle")
	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     bundle,
		Pwd:     pwd,
		Mode:    getter.ClientModeDir,
		Getters: getters,
	}
	log.Infow("Fetching model bundle", "source", src, logger.FieldPath, dst)
	if err := client.Get(); err != nil {
		return nil, errors.Wrapf(err, "fetch model bundle %s", src)
	}

	store, failures, err := Load(bundle, nil, log)
	if err != nil {
		return nil, errors.Wrap(err, "inspect fetched bundle")
	}
	if store.Len() == 0 {
		return nil, errors.WithHint(
			errors.Mark(errors.Newf("bundle %s contains no loadable scheme", src), errors.ErrArtifactLoad),
			"a bundle holds one directory per scheme, each with manifest.toml and its model file")
	}

	// checkEmpty allowed an empty dst; it has to go before the rename.
	_ = os.Remove(dst)
	if err := os.Rename(bundle, dst); err != nil {
		return nil, errors.Wrapf(err, "install bundle into %s", dst)
	}

	log.Infow("Fetch completed", logger.FieldPath, dst, logger.FieldCount, store.Len())
	return &FetchResult{
		Source:   src,
		Detected: detected,
		Dir:      dst,
		Schemes:  store.Schemes(),
		Failures: failures,
	}, nil
}

func checkEmpty(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "inspect %s", dir)
	}
	if len(entries) > 0 {
		return errors.WithHint(
			errors.Mark(errors.Newf("destination %s is not empty", dir), errors.ErrInvalidRequest),
			"choose a new directory or remove the existing models first")
	}
	return nil
}
