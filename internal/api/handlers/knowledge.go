// HTTP handlers for knowledge-base administration.
// POST/GET /api/knowledge/stores and POST/GET /api/knowledge/stores/{id}/files.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/aiweb/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/aiweb/internal/domain/knowledge"
)

// maxUploadBytes caps the multipart body accepted by UploadFile.
const maxUploadBytes = 64 << 20

// uploadMemoryBytes is how much of a multipart form is held in memory
// before mime/multipart spills to a temp file.
const uploadMemoryBytes = 8 << 20

// KnowledgeService is the part of knowledge.Service the handlers need.
type KnowledgeService interface {
	CreateStore(ctx context.Context, name, createdBy string) (*knowledge.Store, error)
	UploadFile(ctx context.Context, in knowledge.UploadInput) (*knowledge.UploadResult, error)
	ListStores(ctx context.Context) ([]knowledge.Store, error)
	ListFiles(ctx context.Context, storeID string) ([]knowledge.File, error)
}

// KnowledgeHandler handles knowledge admin HTTP requests.
type KnowledgeHandler struct {
	service KnowledgeService
}

// NewKnowledgeHandler creates a KnowledgeHandler.
func NewKnowledgeHandler(svc KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{service: svc}
}

type createStoreRequest struct {
	Name string `json:"name"`
}

type storeListResponse struct {
	Data []knowledge.Store `json:"data"`
}

type fileListResponse struct {
	Data []knowledge.File `json:"data"`
}

// CreateStore handles POST /api/knowledge/stores.
func (h *KnowledgeHandler) CreateStore(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctxkeys.String(r.Context(), ctxkeys.UserID)
	if !ok {
		writeError(w, http.StatusUnauthorized, errMissingUserContext)
		return
	}

	var req createStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)
		return
	}

	store, err := h.service.CreateStore(r.Context(), req.Name, userID)
	if err != nil {
		writeDomainError(w, err, "failed to create store")
		return
	}

	writeJSON(w, http.StatusCreated, store)
}

// ListStores handles GET /api/knowledge/stores.
func (h *KnowledgeHandler) ListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.ListStores(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to list stores")
		return
	}
	if stores == nil {
		stores = []knowledge.Store{}
	}
	writeJSON(w, http.StatusOK, storeListResponse{Data: stores})
}

// UploadFile handles POST /api/knowledge/stores/{id}/files.
// The file travels in the multipart field "file"; the call returns once
// ingestion has finished on the provider side.
func (h *KnowledgeHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := ctxkeys.String(r.Context(), ctxkeys.UserID)
	if !ok {
		writeError(w, http.StatusUnauthorized, errMissingUserContext)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(uploadMemoryBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with field \"file\"")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	result, err := h.service.UploadFile(r.Context(), knowledge.UploadInput{
		StoreID:    chi.URLParam(r, "id"),
		Filename:   header.Filename,
		Content:    file,
		UploadedBy: userID,
	})
	if err != nil {
		writeDomainError(w, err, "failed to upload file")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListFiles handles GET /api/knowledge/stores/{id}/files.
func (h *KnowledgeHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.service.ListFiles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "failed to list files")
		return
	}
	if files == nil {
		files = []knowledge.File{}
	}
	writeJSON(w, http.StatusOK, fileListResponse{Data: files})
}
