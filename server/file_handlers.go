package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jrsteele09/go-blob-drive/blobs"
	apperrors "github.com/jrsteele09/go-blob-drive/internal/errors"
	"github.com/jrsteele09/go-blob-drive/sessions"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"

	// maxUploadAttempts bounds the renames tried when concurrent uploads keep taking the chosen name.
	maxUploadAttempts = 5
	sniffLength       = 512
)

// FileRow is one line of the file listing.
type FileRow struct {
	Name        string
	Size        string
	Modified    string
	DownloadURL string
	ViewURL     string
	DeleteURL   string
}

// IndexPageData contains data for rendering the file listing
type IndexPageData struct {
	AppName  string
	UserName string
	Files    []FileRow
	Flashes  []sessions.Flash
}

// IndexHandler lists the container (GET /).
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		sess := s.session(r)

		list, err := s.blobs.List(r.Context())
		if err != nil {
			logger.Err(err).Msg("Failed to list blobs")
			http.Error(w, "Could not list files", http.StatusInternalServerError)
			return
		}

		data := IndexPageData{
			AppName: s.config.GetAppName(),
			Files:   make([]FileRow, 0, len(list)),
			Flashes: sess.Flashes(),
		}
		if id, ok := IdentityFromContext(r.Context()); ok {
			data.UserName = id.Name()
		}
		for _, b := range list {
			data.Files = append(data.Files, newFileRow(b))
		}

		if !s.saveSession(w, r, sess) {
			return
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		if err := s.indexTmpl.Execute(w, data); err != nil {
			logger.Err(err).Msg("Failed to render index template")
		}
	}
}

func newFileRow(b blobs.Blob) FileRow {
	row := FileRow{
		Name:        b.Name,
		Size:        formatSize(b.Size),
		DownloadURL: RouteDownload + escapeBlobPath(b.Name),
		ViewURL:     RouteView + escapeBlobPath(b.Name),
		DeleteURL:   RouteDelete + escapeBlobPath(b.Name),
	}
	if !b.LastModified.IsZero() {
		row.Modified = b.LastModified.UTC().Format(time.DateTime)
	}
	return row
}

// UploadHandler stores the multipart field "file" (POST /). Name collisions are resolved by renaming, never by overwriting.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(r)
		sess := s.session(r)

		r.Body = http.MaxBytesReader(w, r.Body, s.config.GetMaxUploadBytes())
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			case errors.Is(err, http.ErrMissingFile):
				s.flashAndReturn(w, r, sess, sessions.FlashWarning, "No file selected.")
			default:
				logger.Warn().Err(err).Msg("Invalid upload form")
				http.Error(w, "Invalid upload", http.StatusBadRequest)
			}
			return
		}
		defer file.Close()

		name, err := blobs.SanitizeName(header.Filename)
		if err != nil {
			s.flashAndReturn(w, r, sess, sessions.FlashError, "Invalid file name.")
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			logger.Err(err).Msg("Failed to read upload")
			http.Error(w, "Upload failed", http.StatusBadRequest)
			return
		}
		contentType := blobs.DetectContentType(name, data[:min(len(data), sniffLength)])

		stored, err := s.storeUnique(r, name, data, contentType)
		if err != nil {
			logger.Err(err).Str("file", name).Msg("Failed to upload blob")
			http.Error(w, "Upload failed", http.StatusInternalServerError)
			return
		}

		logger.Info().Str("file", stored).Int("bytes", len(data)).Msg("File uploaded")
		if stored != name {
			s.flashAndReturn(w, r, sess, sessions.FlashWarning, fmt.Sprintf("File already exists. Renamed to: %s", stored))
			return
		}
		s.flashAndReturn(w, r, sess, sessions.FlashSuccess, fmt.Sprintf("Uploaded file: %s", stored))
	}
}

// storeUnique uploads data under name or the first free "name(n).ext", and returns the name used.
func (s *Server) storeUnique(r *http.Request, name string, data []byte, contentType string) (string, error) {
	list, err := s.blobs.List(r.Context())
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(list))
	for _, b := range list {
		taken[b.Name] = true
	}
	isTaken := func(n string) bool { return taken[n] }

	for attempt := 0; attempt < maxUploadAttempts; attempt++ {
		candidate := blobs.UniqueName(name, isTaken)
		err := s.blobs.Put(r.Context(), candidate, data, contentType, false)
		if err == nil {
			return candidate, nil
		}
		if !apperrors.Is(err, apperrors.ErrBlobExists) {
			return "", err
		}
		// Someone else took the name between the listing and the upload.
		taken[candidate] = true
	}
	return "", fmt.Errorf("[Server storeUnique] %w: no free name for %s after %d attempts", apperrors.ErrBlobExists, name, maxUploadAttempts)
}

// DownloadHandler sends a blob as an attachment (GET /download/{name...}).
func (s *Server) DownloadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		body, b, err := s.blobs.Get(r.Context(), name)
		if err != nil {
			s.blobError(w, r, err, name, "Download failed")
			return
		}
		defer body.Close()

		contentType := b.ContentType
		if contentType == "" {
			contentType = blobs.DetectContentType(name, nil)
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", contentDisposition("attachment", name))
		writeBody(w, r, body, b.Size)
	}
}

// ViewHandler opens a blob in the browser (GET /view/{name...}). Office documents go to the Office web
// viewer through a short lived read URL; everything else is streamed inline if the browser can show it safely.
func (s *Server) ViewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")

		if blobs.IsOfficeDocument(name) {
			readURL, err := s.blobs.TemporaryReadURL(name, s.config.GetSASTTL())
			if err != nil {
				s.blobError(w, r, err, name, "View failed")
				return
			}
			http.Redirect(w, r, s.config.GetOfficeViewerURL()+"?src="+url.QueryEscape(readURL), http.StatusFound)
			return
		}

		body, b, err := s.blobs.Get(r.Context(), name)
		if err != nil {
			s.blobError(w, r, err, name, "View failed")
			return
		}
		defer body.Close()

		reader := bufio.NewReaderSize(body, sniffLength)
		head, _ := reader.Peek(sniffLength)
		contentType := blobs.DetectContentType(name, head)
		if !blobs.IsInlineSafe(contentType) {
			http.Error(w, "This file type cannot be previewed. Download it instead.", http.StatusUnsupportedMediaType)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", contentDisposition("inline", name))
		writeBody(w, r, reader, b.Size)
	}
}

// DeleteHandler removes a blob (POST /delete/{name...}).
func (s *Server) DeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		if err := s.blobs.Delete(r.Context(), name); err != nil {
			s.blobError(w, r, err, name, "Delete failed")
			return
		}
		requestLogger(r).Info().Str("file", name).Msg("File deleted")
		s.flashAndReturn(w, r, s.session(r), sessions.FlashSuccess, fmt.Sprintf("Deleted file: %s", name))
	}
}

func (s *Server) PingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "App is running!")
	}
}

func (s *Server) flashAndReturn(w http.ResponseWriter, r *http.Request, sess *sessions.Session, category, message string) {
	sess.AddFlash(category, message)
	if !s.saveSession(w, r, sess) {
		return
	}
	redirectSeeOther(w, r, RouteIndex)
}

// blobError answers a failed storage call. Storage errors are logged, never echoed to the browser.
func (s *Server) blobError(w http.ResponseWriter, r *http.Request, err error, name, message string) {
	if apperrors.Is(err, apperrors.ErrBlobNotFound) {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	requestLogger(r).Err(err).Str("file", name).Msg(message)
	http.Error(w, message, http.StatusInternalServerError)
}

func writeBody(w http.ResponseWriter, r *http.Request, body io.Reader, size int64) {
	if size > 0 {
		w.Header().Set("Content-Length", fmt.Sprint(size))
	}
	if _, err := io.Copy(w, body); err != nil {
		requestLogger(r).Debug().Err(err).Msg("Client went away while streaming")
	}
}

func contentDisposition(disposition, name string) string {
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": path.Base(name)}); v != "" {
		return v
	}
	return disposition
}

// escapeBlobPath escapes each segment of a blob name for use in a URL path.
func escapeBlobPath(name string) string {
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
