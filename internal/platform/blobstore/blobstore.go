// Package blobstore stores the knowledge base documents that ground the
// support and sales bots. It defines the DocumentStore interface, an
// in-memory implementation for tests and development, an S3-backed
// implementation for production, and Echo handlers for multipart upload,
// download, metadata retrieval, deletion, and search.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/moonraker/engage/internal/platform/auth"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrInvalidCategory    = errors.New("category is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrMissingPractice    = errors.New("practice id is required")
)

// ---------------------------------------------------------------------------
// Validation constants
// ---------------------------------------------------------------------------

// MaxFileSize is the maximum allowed document size in bytes (20 MB).
const MaxFileSize = 20 * 1024 * 1024

// AllowedCategories lists valid knowledge document categories.
var AllowedCategories = map[string]bool{
	"faq":          true,
	"policy":       true,
	"service-info": true,
	"intake-form":  true,
	"insurance":    true,
	"other":        true,
}

// AllowedContentTypes lists document MIME types the bots can ingest.
var AllowedContentTypes = map[string]bool{
	"application/pdf":  true,
	"text/plain":       true,
	"text/markdown":    true,
	"text/html":        true,
	"text/csv":         true,
	"application/json": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// Document describes a stored knowledge base document.
type Document struct {
	ID          string            `json:"id"`
	PracticeID  string            `json:"practice_id"`
	FileName    string            `json:"file_name"`
	ContentType string            `json:"content_type"`
	Size        int64             `json:"size"`
	Category    string            `json:"category"`
	Hash        string            `json:"hash"`
	CreatedAt   time.Time         `json:"created_at"`
	CreatedBy   string            `json:"created_by"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// SearchParams specifies search/filter criteria for documents.
type SearchParams struct {
	PracticeID    string
	Category      string
	ContentType   string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	FileName      string // partial match
	Tags          map[string]string
	Limit         int
	Offset        int
}

// ---------------------------------------------------------------------------
// DocumentStore interface
// ---------------------------------------------------------------------------

// DocumentStore defines the contract for knowledge document backends.
type DocumentStore interface {
	Upload(ctx context.Context, doc Document, content io.Reader) (*Document, error)
	Download(ctx context.Context, practiceID, id string) (io.ReadCloser, *Document, error)
	Delete(ctx context.Context, practiceID, id string) error
	GetMetadata(ctx context.Context, practiceID, id string) (*Document, error)
	ListByPractice(ctx context.Context, practiceID, category string, limit, offset int) ([]*Document, int, error)
	Search(ctx context.Context, params SearchParams) ([]*Document, int, error)
}

// validateUpload checks the fields the caller controls before any bytes are
// read. Stores share it so both backends reject the same inputs.
func validateUpload(doc *Document) error {
	if doc.FileName == "" {
		return ErrMissingFileName
	}
	if doc.PracticeID == "" {
		return ErrMissingPractice
	}
	if doc.Category == "" {
		doc.Category = "other"
	}
	if !AllowedCategories[doc.Category] {
		return ErrInvalidCategory
	}
	if doc.ContentType != "" && !AllowedContentTypes[doc.ContentType] {
		return ErrInvalidContentType
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedDocument struct {
	meta    Document
	content []byte
}

// InMemoryStore is a thread-safe, in-memory DocumentStore for tests/dev.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*storedDocument
}

// NewInMemoryStore returns a ready-to-use InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		docs: make(map[string]*storedDocument),
	}
}

// Upload validates inputs, reads the content, computes a SHA-256 hash, and
// stores the document in memory.
func (s *InMemoryStore) Upload(_ context.Context, doc Document, content io.Reader) (*Document, error) {
	if err := validateUpload(&doc); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)

	doc.ID = uuid.New().String()
	doc.Size = int64(len(data))
	doc.Hash = fmt.Sprintf("%x", h)
	doc.CreatedAt = time.Now().UTC()

	if doc.Tags == nil {
		doc.Tags = make(map[string]string)
	}

	s.mu.Lock()
	s.docs[doc.ID] = &storedDocument{
		meta:    doc,
		content: data,
	}
	s.mu.Unlock()

	out := doc // copy
	return &out, nil
}

// Download returns an io.ReadCloser over the document content and its
// metadata. Documents belonging to another practice are reported as missing.
func (s *InMemoryStore) Download(_ context.Context, practiceID, id string) (io.ReadCloser, *Document, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()

	if !ok || doc.meta.PracticeID != practiceID {
		return nil, nil, ErrDocumentNotFound
	}

	meta := doc.meta // copy
	return io.NopCloser(bytes.NewReader(doc.content)), &meta, nil
}

// Delete removes a document by ID.
func (s *InMemoryStore) Delete(_ context.Context, practiceID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok || doc.meta.PracticeID != practiceID {
		return ErrDocumentNotFound
	}
	delete(s.docs, id)
	return nil
}

// GetMetadata returns document metadata without content.
func (s *InMemoryStore) GetMetadata(_ context.Context, practiceID, id string) (*Document, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()

	if !ok || doc.meta.PracticeID != practiceID {
		return nil, ErrDocumentNotFound
	}

	meta := doc.meta // copy
	return &meta, nil
}

// ListByPractice returns documents for a given practice, optionally filtered
// by category. It returns the matching page and the total count.
func (s *InMemoryStore) ListByPractice(_ context.Context, practiceID, category string, limit, offset int) ([]*Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Document
	for _, d := range s.docs {
		if d.meta.PracticeID != practiceID {
			continue
		}
		if category != "" && d.meta.Category != category {
			continue
		}
		m := d.meta // copy
		matched = append(matched, &m)
	}

	total := len(matched)
	return pageOf(matched, limit, offset), total, nil
}

// Search returns documents matching the given search parameters.
func (s *InMemoryStore) Search(_ context.Context, params SearchParams) ([]*Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Document
	for _, d := range s.docs {
		if !matchesSearch(&d.meta, params) {
			continue
		}
		m := d.meta // copy
		matched = append(matched, &m)
	}

	total := len(matched)
	return pageOf(matched, params.Limit, params.Offset), total, nil
}

func pageOf(docs []*Document, limit, offset int) []*Document {
	if limit <= 0 {
		limit = 20
	}
	if offset > len(docs) {
		offset = len(docs)
	}
	end := offset + limit
	if end > len(docs) {
		end = len(docs)
	}
	return docs[offset:end]
}

func matchesSearch(m *Document, p SearchParams) bool {
	if p.PracticeID != "" && m.PracticeID != p.PracticeID {
		return false
	}
	if p.Category != "" && m.Category != p.Category {
		return false
	}
	if p.ContentType != "" && m.ContentType != p.ContentType {
		return false
	}
	if p.CreatedAfter != nil && m.CreatedAt.Before(*p.CreatedAfter) {
		return false
	}
	if p.CreatedBefore != nil && m.CreatedAt.After(*p.CreatedBefore) {
		return false
	}
	if p.FileName != "" && !strings.Contains(strings.ToLower(m.FileName), strings.ToLower(p.FileName)) {
		return false
	}
	if len(p.Tags) > 0 {
		for k, v := range p.Tags {
			if mv, ok := m.Tags[k]; !ok || mv != v {
				return false
			}
		}
	}
	return true
}

// ---------------------------------------------------------------------------
// HTTP handler
// ---------------------------------------------------------------------------

// listResponse is the JSON envelope returned by list/search endpoints.
type listResponse struct {
	Items []*Document `json:"items"`
	Total int         `json:"total"`
}

// Handler provides Echo HTTP handlers for knowledge document operations. All
// routes are scoped to the authenticated practice.
type Handler struct {
	store DocumentStore
}

// NewHandler creates a new Handler.
func NewHandler(store DocumentStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts knowledge document routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/knowledge/documents", h.handleUpload)
	g.GET("/knowledge/documents", h.handleList)
	g.GET("/knowledge/documents/search", h.handleSearch)
	g.GET("/knowledge/documents/:id/metadata", h.handleGetMetadata)
	g.GET("/knowledge/documents/:id", h.handleDownload)
	g.DELETE("/knowledge/documents/:id", h.handleDelete)
}

func (h *Handler) handleUpload(c echo.Context) error {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	if practiceID == "" {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "practice context required"})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file is required"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to open uploaded file"})
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")

	doc := Document{
		PracticeID:  practiceID,
		FileName:    file.Filename,
		ContentType: contentType,
		Category:    c.FormValue("category"),
		CreatedBy:   auth.UserIDFromContext(c.Request().Context()),
	}

	result, err := h.store.Upload(c.Request().Context(), doc, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrMissingFileName), errors.Is(err, ErrInvalidCategory):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrInvalidContentType):
			return c.JSON(http.StatusUnsupportedMediaType, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) handleDownload(c echo.Context) error {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	id := c.Param("id")

	rc, doc, err := h.store.Download(c.Request().Context(), practiceID, id)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.FileName))
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return c.Stream(http.StatusOK, contentType, rc)
}

func (h *Handler) handleGetMetadata(c echo.Context) error {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	id := c.Param("id")

	doc, err := h.store.GetMetadata(c.Request().Context(), practiceID, id)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, doc)
}

func (h *Handler) handleDelete(c echo.Context) error {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	id := c.Param("id")

	err := h.store.Delete(c.Request().Context(), practiceID, id)
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) handleList(c echo.Context) error {
	practiceID := auth.PracticeIDFromContext(c.Request().Context())
	category := c.QueryParam("category")
	limit := intParam(c, "limit", 20)
	offset := intParam(c, "offset", 0)

	items, total, err := h.store.ListByPractice(c.Request().Context(), practiceID, category, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if items == nil {
		items = []*Document{}
	}

	return c.JSON(http.StatusOK, listResponse{Items: items, Total: total})
}

func (h *Handler) handleSearch(c echo.Context) error {
	params := SearchParams{
		PracticeID:  auth.PracticeIDFromContext(c.Request().Context()),
		Category:    c.QueryParam("category"),
		ContentType: c.QueryParam("content_type"),
		FileName:    c.QueryParam("file_name"),
		Limit:       intParam(c, "limit", 20),
		Offset:      intParam(c, "offset", 0),
	}

	items, total, err := h.store.Search(c.Request().Context(), params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if items == nil {
		items = []*Document{}
	}

	return c.JSON(http.StatusOK, listResponse{Items: items, Total: total})
}

func intParam(c echo.Context, name string, defaultVal int) int {
	v := c.QueryParam(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
