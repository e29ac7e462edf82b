package archive

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/server/fetcher"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

func ref(id, name string) models.MediaItemRef {
	return models.MediaItemRef{ID: id, DisplayName: name}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestBuild_AllSucceeded_NoManifest(t *testing.T) {
	twoMB := bytes.Repeat([]byte{0xAB}, 2<<20)
	outcomes := []fetcher.Outcome{
		fetcher.Success(ref("1", "a.jpg"), twoMB),
		fetcher.Success(ref("2", "b.jpg"), twoMB),
		fetcher.Success(ref("3", "c.jpg"), twoMB),
	}

	res, err := Build(outcomes, 500<<20)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Included)
	assert.Equal(t, 0, res.Failed)

	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, zipNames(t, res.Data))
	files := readZip(t, res.Data)
	assert.Len(t, files["b.jpg"], 2<<20)
	assert.NotContains(t, files, ManifestName)
}

func TestBuild_PartialFailure_AppendsManifest(t *testing.T) {
	outcomes := []fetcher.Outcome{
		fetcher.Success(ref("1", "a.jpg"), []byte("A")),
		fetcher.Failure(ref("2", "slow.jpg"), fetcher.ReasonTimeout),
		fetcher.Success(ref("3", "b.jpg"), []byte("B")),
		fetcher.Failure(ref("4", "foreign.jpg"), fetcher.ReasonInvalidSource),
		fetcher.Success(ref("5", "c.jpg"), []byte("C")),
	}

	res, err := Build(outcomes, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Included)
	assert.Equal(t, 2, res.Failed)

	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg", ManifestName}, zipNames(t, res.Data))

	manifest := readZip(t, res.Data)[ManifestName]
	lines := strings.Split(strings.TrimSpace(manifest), "\n")
	assert.Equal(t, []string{"slow.jpg: timeout", "foreign.jpg: invalid source"}, lines[len(lines)-2:])
}

func TestBuild_AllFailed(t *testing.T) {
	outcomes := []fetcher.Outcome{
		fetcher.Failure(ref("1", "a"), fetcher.ReasonTimeout),
		fetcher.Failure(ref("2", "b"), fetcher.ReasonNotFound),
	}

	res, err := Build(outcomes, 0)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, common.ErrNoSuccessfulItems)
	assert.ErrorIs(t, err, common.ErrAssembly)

	_, err = Build(nil, 0)
	assert.ErrorIs(t, err, common.ErrNoSuccessfulItems)
}

func TestBuild_TotalSizeExceeded(t *testing.T) {
	outcomes := []fetcher.Outcome{
		fetcher.Success(ref("1", "a"), make([]byte, 60)),
		fetcher.Success(ref("2", "b"), make([]byte, 60)),
	}

	_, err := Build(outcomes, 100)
	assert.ErrorIs(t, err, common.ErrTotalSizeExceeded)
}

func TestBuild_SanitizesAndToleratesDuplicates(t *testing.T) {
	outcomes := []fetcher.Outcome{
		fetcher.Success(ref("1", "../../etc/passwd"), []byte("1")),
		fetcher.Success(ref("2", "same.jpg"), []byte("2")),
		fetcher.Success(ref("3", "same.jpg"), []byte("3")),
		fetcher.Success(ref("id-4", "\x00\x01"), []byte("4")),
	}

	res, err := Build(outcomes, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"etcpasswd", "same.jpg", "same.jpg", "id-4"}, zipNames(t, res.Data))
}

func TestBuild_MediaNeverTakesManifestName(t *testing.T) {
	outcomes := []fetcher.Outcome{
		fetcher.Success(ref("1", ManifestName), []byte("guest upload")),
		fetcher.Success(ref("2", "failed_downloads.TXT"), []byte("another")),
		fetcher.Failure(ref("3", "lost.jpg"), fetcher.ReasonNotFound),
	}

	res, err := Build(outcomes, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"_" + ManifestName, "_failed_downloads.TXT", ManifestName}, zipNames(t, res.Data))

	files := readZip(t, res.Data)
	assert.Equal(t, "guest upload", files["_"+ManifestName])
	assert.Contains(t, files[ManifestName], "lost.jpg: not found")

	res, err = Build(outcomes[:1], 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"_" + ManifestName}, zipNames(t, res.Data), "reserved even without failures")
}

func TestManifest_FallsBackToID(t *testing.T) {
	m := string(Manifest([]fetcher.Outcome{fetcher.Failure(ref("m-9", ""), fetcher.ReasonTooLarge)}))
	assert.Contains(t, m, "m-9: file too large\n")
}
