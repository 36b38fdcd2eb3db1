package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"relaychat/internal/storage"
)

// DefaultMaxFileSize bounds a single upload to 25 MB.
const DefaultMaxFileSize = 25 * 1024 * 1024

// FileUploadHandler accepts file uploads and serves them back. The relay
// treats the result purely as an opaque descriptor; whether a descriptor ever
// appears in a message is the client's business.
type FileUploadHandler struct {
	store       *storage.Store
	uploadDir   string
	maxFileSize int64
	limiter     *RateLimiter
	metrics     *Metrics
}

func NewFileUploadHandler(store *storage.Store, uploadDir string, maxFileSize int64, metrics *Metrics) *FileUploadHandler {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	// the download containment check compares absolute paths, so a relative
	// configured dir must be resolved once up front.
	if abs, err := filepath.Abs(uploadDir); err == nil {
		uploadDir = abs
	}
	return &FileUploadHandler{
		store:       store,
		uploadDir:   uploadDir,
		maxFileSize: maxFileSize,
		limiter:     NewRateLimiter(20, time.Minute),
		metrics:     metrics,
	}
}

// HandleUpload processes a single-file multipart upload and responds with the
// {id, url, name, mimetype, size} descriptor.
func (h *FileUploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if !h.limiter.Allow(clientIP(r)) {
		w.Header().Set("Retry-After", "60")
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("file too large"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("no file provided"))
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." || filename == ".." {
		writeError(w, http.StatusBadRequest, errors.New("invalid filename"))
		return
	}
	if header.Size > h.maxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("file too large"))
		return
	}

	// stored as <unix-ms>-<uuid8><ext>, which doubles as the public id.
	fileID := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], filepath.Ext(filename))
	storagePath := filepath.Join(h.uploadDir, fileID)

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("create upload directory: %w", err))
		return
	}
	destFile, err := os.Create(storagePath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("create file: %w", err))
		return
	}
	defer destFile.Close()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(destFile, hasher), file)
	if err != nil {
		os.Remove(storagePath)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("save file: %w", err))
		return
	}

	mimetype := header.Header.Get("Content-Type")
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}

	if h.store != nil {
		record := storage.Upload{
			ID:          fileID,
			Name:        filename,
			Mimetype:    mimetype,
			SizeBytes:   written,
			StoragePath: fileID,
			SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		}
		if err := h.store.InsertUpload(r.Context(), record); err != nil {
			os.Remove(storagePath)
			writeError(w, http.StatusInternalServerError, fmt.Errorf("index upload: %w", err))
			return
		}
	}

	h.metrics.IncUpload()
	log.Printf("stored upload %s (%s, %s)", fileID, filename, humanize.Bytes(uint64(written)))

	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(h.limiter.Remaining(clientIP(r))))
	writeJSON(w, http.StatusOK, FileRef{
		ID:       fileID,
		URL:      "/uploads/" + fileID,
		Name:     filename,
		Mimetype: mimetype,
		Size:     written,
	})
}

// HandleDownload serves a previously uploaded blob at /uploads/<id>.
func (h *FileUploadHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	fileID := strings.TrimPrefix(r.URL.Path, "/uploads/")
	if fileID == "" || strings.ContainsAny(fileID, "/\\") {
		http.Error(w, "file ID required", http.StatusBadRequest)
		return
	}

	info, err := h.store.GetUpload(r.Context(), fileID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if info == nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	filePath := filepath.Join(h.uploadDir, info.StoragePath)
	absPath, err := filepath.Abs(filePath)
	base := filepath.Clean(h.uploadDir) + string(os.PathSeparator)
	if err != nil || !strings.HasPrefix(absPath, base) {
		http.Error(w, "invalid file path", http.StatusForbidden)
		return
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "file not found on disk", http.StatusNotFound)
		} else {
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", info.Mimetype)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", info.Name))
	http.ServeContent(w, r, info.Name, info.CreatedAt, file)
}
