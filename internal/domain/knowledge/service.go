package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/aiweb/internal/infra/eventbus"
	"github.com/matiasleandrokruk/aiweb/internal/infra/llm"
)

// BackendRouter resolves the knowledge backend for the current request.
// *llm.Router implements it.
type BackendRouter interface {
	Backend() llm.KnowledgeBackend
}

// UploadObserver receives upload outcomes. *metrics.Metrics implements it.
type UploadObserver interface {
	RecordUpload(size int, err error)
}

// UploadInput is the input for UploadFile.
type UploadInput struct {
	StoreID    string
	Filename   string
	Content    io.ReadSeeker
	UploadedBy string
}

// Service creates stores and uploads files. Remote state is authoritative;
// the SQLite tables are a local record only.
type Service struct {
	db       *sql.DB
	router   BackendRouter
	bus      eventbus.EventBus
	log      zerolog.Logger
	observer UploadObserver
}

// NewService creates a knowledge Service. bus and observer may be nil.
func NewService(db *sql.DB, router BackendRouter, bus eventbus.EventBus, log zerolog.Logger, observer UploadObserver) *Service {
	return &Service{db: db, router: router, bus: bus, log: log, observer: observer}
}

// CreateStore creates a remote vector store named name and records it.
func (s *Service) CreateStore(ctx context.Context, name, createdBy string) (*Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: store name is empty", llm.ErrInvalidArgument)
	}

	id, err := s.router.Backend().CreateVectorStore(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrProviderCallFailed, err)
	}

	store := &Store{ID: id, Name: name, CreatedBy: createdBy, CreatedAt: time.Now().UTC()}
	if err := s.insertStore(ctx, store); err != nil {
		s.log.Error().Err(err).Str("store_id", id).Msg("vector store created but not recorded")
	}
	return store, nil
}

// UploadFile rewinds and reads Content, uploads it to the store and blocks
// until ingestion is terminal. Provider failures wrap llm.ErrUploadFailed.
func (s *Service) UploadFile(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if strings.TrimSpace(in.StoreID) == "" {
		return nil, fmt.Errorf("%w: store id is empty", llm.ErrInvalidArgument)
	}
	if in.Content == nil {
		return nil, fmt.Errorf("%w: upload content is missing", llm.ErrInvalidArgument)
	}
	filename := strings.TrimSpace(in.Filename)
	if filename == "" {
		filename = "upload"
	}

	if _, err := in.Content.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload %q: %w", filename, err)
	}
	data, err := io.ReadAll(in.Content)
	if err != nil {
		return nil, fmt.Errorf("read upload %q: %w", filename, err)
	}

	start := time.Now()
	fileID, err := s.router.Backend().UploadFile(ctx, in.StoreID, filename, data)
	s.notify(FileUploadedEvent{
		StoreID: in.StoreID, FileID: fileID, Filename: filename,
		Size: int64(len(data)), Duration: time.Since(start), Err: err,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", llm.ErrUploadFailed, err)
	}

	file := &File{
		ID:         fileID,
		StoreID:    in.StoreID,
		Filename:   filename,
		SizeBytes:  int64(len(data)),
		UploadedBy: in.UploadedBy,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.insertFile(ctx, file); err != nil {
		s.log.Error().Err(err).Str("file_id", fileID).Str("store_id", in.StoreID).
			Msg("file uploaded but not recorded")
	}

	return &UploadResult{FileID: fileID, StoreID: in.StoreID, Filename: filename, SizeBytes: file.SizeBytes}, nil
}

// ListStores returns recorded stores, newest first.
func (s *Service) ListStores(ctx context.Context) ([]Store, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(created_by, ''), created_at
		FROM knowledge_store
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	out := []Store{}
	for rows.Next() {
		var st Store
		var created string
		if err := rows.Scan(&st.ID, &st.Name, &st.CreatedBy, &created); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		st.CreatedAt = parseTime(created)
		out = append(out, st)
	}
	return out, rows.Err()
}

// ListFiles returns files recorded for storeID, newest first.
func (s *Service) ListFiles(ctx context.Context, storeID string) ([]File, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, fmt.Errorf("%w: store id is empty", llm.ErrInvalidArgument)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, filename, size_bytes, COALESCE(uploaded_by, ''), created_at
		FROM knowledge_file
		WHERE store_id = ?
		ORDER BY created_at DESC, id
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	out := []File{}
	for rows.Next() {
		var f File
		var created string
		if err := rows.Scan(&f.ID, &f.StoreID, &f.Filename, &f.SizeBytes, &f.UploadedBy, &created); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.CreatedAt = parseTime(created)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ─── internal ────────────────────────────────────────────────────────────────

func (s *Service) insertStore(ctx context.Context, st *Store) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_store (id, name, created_by, created_at)
		VALUES (?, ?, ?, ?)
	`, st.ID, st.Name, nullable(st.CreatedBy), st.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *Service) insertFile(ctx context.Context, f *File) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge_file (id, store_id, filename, size_bytes, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.ID, f.StoreID, f.Filename, f.SizeBytes, nullable(f.UploadedBy), f.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func (s *Service) notify(evt FileUploadedEvent) {
	if s.observer != nil {
		s.observer.RecordUpload(int(evt.Size), evt.Err)
	}
	if s.bus != nil {
		s.bus.Publish(TopicFileUploaded, evt)
	}
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
