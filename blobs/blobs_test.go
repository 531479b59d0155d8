package blobs_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/jrsteele09/go-blob-drive/blobs"
	"github.com/jrsteele09/go-blob-drive/blobs/repofake"
	apperrors "github.com/jrsteele09/go-blob-drive/internal/errors"
	"github.com/stretchr/testify/require"
)

const testConnectionString = "DefaultEndpointsProtocol=https;AccountName=blobdrivetest;AccountKey=ZmFrZS1hY2NvdW50LWtleS1mb3ItdGVzdHM=;EndpointSuffix=core.windows.net"

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"My Report 2024.docx", "My_Report_2024.docx"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\jane\notes.txt`, "notes.txt"},
		{"résumé.pdf", "resume.pdf"},
		{"  .hidden  ", "hidden"},
		{"a<b>c?.png", "abc.png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := blobs.SanitizeName(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "..", "日本語", "///"} {
		_, err := blobs.SanitizeName(bad)
		require.ErrorIs(t, err, apperrors.ErrInvalidBlobName, bad)
	}
}

func TestUniqueName(t *testing.T) {
	existing := map[string]bool{"a.txt": true, "a(1).txt": true, "noext": true}
	taken := func(n string) bool { return existing[n] }

	require.Equal(t, "b.txt", blobs.UniqueName("b.txt", taken))
	require.Equal(t, "a(2).txt", blobs.UniqueName("a.txt", taken))
	require.Equal(t, "noext(1)", blobs.UniqueName("noext", taken))
}

func TestContentTypes(t *testing.T) {
	require.True(t, blobs.IsOfficeDocument("Budget.XLSX"))
	require.True(t, blobs.IsOfficeDocument("dir/slides.odp"))
	require.False(t, blobs.IsOfficeDocument("report.pdf"))

	require.Equal(t, "application/pdf", blobs.DetectContentType("report.pdf", nil))
	require.Equal(t, "image/png", blobs.DetectContentType("IMAGE.PNG", nil))
	require.Equal(t, "image/png", blobs.DetectContentType("no-extension", []byte("\x89PNG\r\n\x1a\n0000")))
	require.Equal(t, "application/octet-stream", blobs.DetectContentType("no-extension", nil))

	require.True(t, blobs.IsInlineSafe("application/pdf"))
	require.True(t, blobs.IsInlineSafe("text/plain; charset=utf-8"))
	require.True(t, blobs.IsInlineSafe("image/jpeg"))
	require.True(t, blobs.IsInlineSafe("video/mp4"))
	require.False(t, blobs.IsInlineSafe("image/svg+xml"))
	require.False(t, blobs.IsInlineSafe("text/html; charset=utf-8"))
	require.False(t, blobs.IsInlineSafe("application/octet-stream"))
	require.False(t, blobs.IsInlineSafe(""))
}

func TestNewAzureRepo(t *testing.T) {
	_, err := blobs.NewAzureRepo("", "files")
	require.ErrorIs(t, err, apperrors.ErrMissingConfig)

	_, err = blobs.NewAzureRepo("not a connection string", "files")
	require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestAzureRepo_TemporaryReadURL(t *testing.T) {
	repo, err := blobs.NewAzureRepo(testConnectionString, "files")
	require.NoError(t, err)

	raw, err := repo.TemporaryReadURL("Budget.xlsx", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "blobdrivetest.blob.core.windows.net", u.Host)
	require.Equal(t, "/files/Budget.xlsx", u.Path)
	require.Equal(t, "r", u.Query().Get("sp"))
	require.NotEmpty(t, u.Query().Get("sig"))

	expiry, err := time.Parse(time.RFC3339, u.Query().Get("se"))
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiry, time.Minute)
}

func TestAzureRepo_ErrorMapping(t *testing.T) {
	repo, err := blobs.NewAzureRepo(testConnectionString, "files")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A cancelled context fails before any request is sent and is not a storage error code.
	err = repo.Delete(ctx, "missing.txt")
	require.Error(t, err)
	require.False(t, apperrors.Is(err, apperrors.ErrBlobNotFound))
	require.True(t, strings.HasPrefix(err.Error(), "[AzureRepo Delete]"))

	notFound := &azcore.ResponseError{ErrorCode: "BlobNotFound", StatusCode: http.StatusNotFound}
	require.ErrorIs(t, blobs.MapError("Get", "x", notFound), apperrors.ErrBlobNotFound)
	exists := &azcore.ResponseError{ErrorCode: "BlobAlreadyExists", StatusCode: http.StatusConflict}
	require.ErrorIs(t, blobs.MapError("Put", "x", exists), apperrors.ErrBlobExists)
}

func TestFakeBlobRepo(t *testing.T) {
	ctx := context.Background()
	repo := repofake.New()

	require.NoError(t, repo.Put(ctx, "b.txt", []byte("bee"), "text/plain", false))
	require.NoError(t, repo.Put(ctx, "a.txt", []byte("ay"), "text/plain", false))
	require.ErrorIs(t, repo.Put(ctx, "a.txt", []byte("again"), "text/plain", false), apperrors.ErrBlobExists)
	require.NoError(t, repo.Put(ctx, "a.txt", []byte("again"), "text/plain", true))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a.txt", list[0].Name)
	require.EqualValues(t, 5, list[0].Size)

	require.NoError(t, repo.Delete(ctx, "a.txt"))
	_, _, err = repo.Get(ctx, "a.txt")
	require.ErrorIs(t, err, apperrors.ErrBlobNotFound)
}
