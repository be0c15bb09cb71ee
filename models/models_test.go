package models

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/nrps/errors"
	"github.com/teranos/nrps/svm"
)

const manifestTemplate = `format_version = "1.0.0"
scheme = %q
order = %d
classes = ["hydrophobic", "polar"]
dimension = 20

[encoding]
type = "identity"
signature_length = 1
`

const twoClassModel = `svm_type c_svc
kernel_type linear
nr_class 2
total_sv 2
rho 0
label 0 1
nr_sv 1 1
SV
1 10:1
-1 16:1
`

func writeScheme(t *testing.T, root, dir, scheme string, order int, model string) {
	t.Helper()
	path := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, svm.ManifestFile),
		[]byte(fmt.Sprintf(manifestTemplate, scheme, order)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(path, svm.DefaultModelFile), []byte(model), 0o644))
}

func modelDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeScheme(t, root, "ALPHA", "ALPHA", 2, twoClassModel)
	writeScheme(t, root, "BETA", "BETA", 1, twoClassModel)
	writeScheme(t, root, "GAMMA", "GAMMA", 0, "svm_type c_svc\n")
	// Not a scheme: no manifest.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "signatures.tsv"), nil, 0o644))
	return root
}

func TestDiscover(t *testing.T) {
	schemes, err := Discover(modelDir(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"ALPHA", "BETA", "GAMMA"}, schemes)
}

func TestLoadIsolatesBrokenSchemes(t *testing.T) {
	store, failures, err := Load(modelDir(t), nil, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	assert.Equal(t, []string{"BETA", "ALPHA"}, store.Schemes(), "ordered by manifest order")
	assert.Equal(t, 2, store.Len())

	require.Len(t, failures, 1)
	assert.Equal(t, "GAMMA", failures[0].Scheme)
	assert.Contains(t, failures[0].Reason, "no SV section")
	assert.True(t, errors.IsArtifactLoadError(failures[0].Err))

	a, ok := store.Get("ALPHA")
	require.True(t, ok)
	assert.Equal(t, 2, a.Order)
	_, ok = store.Get("GAMMA")
	assert.False(t, ok)
}

func TestLoadActiveSubset(t *testing.T) {
	store, failures, err := Load(modelDir(t), []string{"ALPHA", "DELTA", "ALPHA"}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"ALPHA"}, store.Schemes())
	require.Len(t, failures, 1)
	assert.Equal(t, "DELTA", failures[0].Scheme)
	assert.True(t, errors.IsArtifactLoadError(failures[0].Err))
}

func TestLoadActiveByManifestName(t *testing.T) {
	root := t.TempDir()
	writeScheme(t, root, "hydro_v2", "HYDROPHOBICITY", 0, twoClassModel)
	writeScheme(t, root, "POLAR", "POLAR", 1, twoClassModel)

	store, failures, err := Load(root, []string{"HYDROPHOBICITY"}, nil)
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, []string{"HYDROPHOBICITY"}, store.Schemes())

	// Directory and manifest names select the same scheme only once.
	store, failures, err = Load(root, []string{"hydro_v2", "HYDROPHOBICITY", "POLAR"}, nil)
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.Equal(t, []string{"HYDROPHOBICITY", "POLAR"}, store.Schemes())
}

func TestLoadMissingDirectory(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent"), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestLoadDuplicateScheme(t *testing.T) {
	root := t.TempDir()
	writeScheme(t, root, "one", "SAME", 0, twoClassModel)
	writeScheme(t, root, "two", "SAME", 0, twoClassModel)

	store, failures, err := Load(root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"SAME"}, store.Schemes())
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Reason, "already loaded")
	assert.Equal(t, filepath.Join(root, "two"), failures[0].Path)
}

func TestNilStore(t *testing.T) {
	var s *Store
	assert.Zero(t, s.Len())
	assert.Nil(t, s.Schemes())
	assert.Nil(t, s.Artifacts())
	_, ok := s.Get("x")
	assert.False(t, ok)
}

func TestArtifactsReturnsCopy(t *testing.T) {
	store, _, err := Load(modelDir(t), nil, nil)
	require.NoError(t, err)

	arts := store.Artifacts()
	arts[0] = nil
	assert.NotNil(t, store.Artifacts()[0])
}

func TestFetchLocalBundle(t *testing.T) {
	src := modelDir(t)
	dst := filepath.Join(t.TempDir(), "models")

	res, err := Fetch(context.Background(), src, dst, FetchOptions{}, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.Equal(t, dst, res.Dir)
	assert.Equal(t, []string{"BETA", "ALPHA"}, res.Schemes)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "GAMMA", res.Failures[0].Scheme)

	_, err = os.Stat(filepath.Join(dst, "ALPHA", svm.ManifestFile))
	assert.NoError(t, err)

	// The source is untouched and a second fetch into dst is refused.
	_, err = os.Stat(filepath.Join(src, "BETA", svm.DefaultModelFile))
	assert.NoError(t, err)
	_, err = Fetch(context.Background(), src, dst, FetchOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestFetchRejectsBundleWithoutSchemes(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "README"), []byte("nothing here"), 0o644))
	dst := filepath.Join(t.TempDir(), "models")

	_, err := Fetch(context.Background(), src, dst, FetchOptions{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsArtifactLoadError(err))

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "nothing installed on failure")
}

// zipBundle packs every file under root into an in-memory zip archive.
func zipBundle(t *testing.T, root string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFetchHTTPArchive(t *testing.T) {
	archive := zipBundle(t, modelDir(t))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "models.zip", time.Time{}, bytes.NewReader(archive))
	}))
	defer server.Close()
	src := server.URL + "/models.zip"

	t.Run("private host refused by default", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "models")
		_, err := Fetch(context.Background(), src, dst, FetchOptions{Timeout: 10 * time.Second}, nil)
		require.Error(t, err)
		_, statErr := os.Stat(dst)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("allowed", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "models")
		res, err := Fetch(context.Background(), src, dst,
			FetchOptions{Timeout: 10 * time.Second, AllowPrivate: true}, zaptest.NewLogger(t).Sugar())
		require.NoError(t, err)
		assert.Equal(t, []string{"BETA", "ALPHA"}, res.Schemes)
		_, err = os.Stat(filepath.Join(dst, "BETA", svm.DefaultModelFile))
		assert.NoError(t, err)
	})
}
