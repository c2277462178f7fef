package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/visionary/internal/models"
	"github.com/desertthunder/visionary/internal/repositories"
	"github.com/desertthunder/visionary/internal/shared"
	"github.com/desertthunder/visionary/internal/tasks"
)

// defaultSimilarDistance is the Hamming distance used when max_distance is omitted.
const defaultSimilarDistance = 10

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// StatusFor maps a library error to its HTTP status.
func StatusFor(err error) int {
	switch shared.ErrorKind(err) {
	case shared.KindInvalid, shared.KindDecode:
		return http.StatusBadRequest
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindClassifier:
		return http.StatusBadGateway
	case shared.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"failed to encode response","kind":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), errorBody{Error: err.Error(), Kind: shared.ErrorKind(err)})
}

// decodeBody reads a small JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

// LibraryHandler serves the photo and album endpoints.
type LibraryHandler struct {
	pipeline *tasks.Pipeline
	library  *repositories.Library
	maxBytes int64
	logger   *log.Logger
	mux      *http.ServeMux
}

// NewLibraryHandler creates a handler that files uploads through pipeline.
//
// Upload bodies larger than maxBytes are rejected; zero disables the cap.
func NewLibraryHandler(pipeline *tasks.Pipeline, maxBytes int64, logger *log.Logger) *LibraryHandler {
	h := &LibraryHandler{
		pipeline: pipeline,
		library:  pipeline.Library(),
		maxBytes: maxBytes,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /classifications", h.createClassification)
	h.mux.HandleFunc("GET /classifications/{id}", h.getClassification)
	h.mux.HandleFunc("GET /classifications/{id}/image", h.getImage)
	h.mux.HandleFunc("GET /classifications/{id}/similar", h.getSimilar)
	h.mux.HandleFunc("PATCH /classifications/{id}", h.moveClassification)
	h.mux.HandleFunc("DELETE /classifications/{id}", h.deleteClassification)
	h.mux.HandleFunc("GET /albums", h.listAlbums)
	h.mux.HandleFunc("GET /albums/{id}", h.getAlbum)
	h.mux.HandleFunc("GET /albums/{id}/classifications", h.listClassifications)
	h.mux.HandleFunc("PATCH /albums/{id}", h.renameAlbum)
	h.mux.HandleFunc("DELETE /albums/{id}", h.deleteAlbum)

	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *LibraryHandler) Routes() []string {
	return []string{
		"POST /classifications",
		"GET /classifications/{id}",
		"GET /classifications/{id}/image",
		"GET /classifications/{id}/similar",
		"PATCH /classifications/{id}",
		"DELETE /classifications/{id}",
		"GET /albums",
		"GET /albums/{id}",
		"GET /albums/{id}/classifications",
		"PATCH /albums/{id}",
		"DELETE /albums/{id}",
	}
}

func (h *LibraryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *LibraryHandler) createClassification(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, fmt.Errorf("%w: image exceeds %d bytes", shared.ErrInvalidInput, tooLarge.Limit))
			return
		}
		writeError(w, fmt.Errorf("%w: failed to read body: %v", shared.ErrInvalidInput, err))
		return
	}

	out, err := h.pipeline.Classify(r.Context(), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *LibraryHandler) getClassification(w http.ResponseWriter, r *http.Request) {
	c, err := h.library.GetClassification(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *LibraryHandler) getImage(w http.ResponseWriter, r *http.Request) {
	c, err := h.library.GetClassification(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !c.HasImage() {
		writeError(w, fmt.Errorf("%w: classification %s has no stored image", shared.ErrNotFound, c.ID()))
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(c.Image()))
	w.Header().Set("Content-Length", strconv.Itoa(len(c.Image())))
	w.WriteHeader(http.StatusOK)
	w.Write(c.Image())
}

func (h *LibraryHandler) getSimilar(w http.ResponseWriter, r *http.Request) {
	distance := defaultSimilarDistance
	if s := r.URL.Query().Get("max_distance"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("%w: max_distance must be a non-negative integer", shared.ErrInvalidInput))
			return
		}
		distance = n
	}

	matches, err := h.library.FindSimilar(r.PathValue("id"), distance)
	if err != nil {
		writeError(w, err)
		return
	}
	if matches == nil {
		matches = []repositories.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *LibraryHandler) moveClassification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AlbumID string `json:"album_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	c, err := h.library.MoveClassification(r.PathValue("id"), req.AlbumID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("classification moved", "id", c.ID(), "album", c.AlbumName())
	writeJSON(w, http.StatusOK, c)
}

func (h *LibraryHandler) deleteClassification(w http.ResponseWriter, r *http.Request) {
	if err := h.library.DeleteClassification(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LibraryHandler) listAlbums(w http.ResponseWriter, r *http.Request) {
	albums, err := h.library.ListAlbums()
	if err != nil {
		writeError(w, err)
		return
	}
	if albums == nil {
		albums = []*models.Album{}
	}
	writeJSON(w, http.StatusOK, albums)
}

func (h *LibraryHandler) getAlbum(w http.ResponseWriter, r *http.Request) {
	album, err := h.library.LoadAlbum(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

func (h *LibraryHandler) listClassifications(w http.ResponseWriter, r *http.Request) {
	order, ok := models.ParseClassificationOrder(r.URL.Query().Get("order"))
	if !ok {
		writeError(w, fmt.Errorf("%w: order must be confidence or timestamp", shared.ErrInvalidInput))
		return
	}

	list, err := h.library.ListClassifications(r.PathValue("id"), order)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*models.Classification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *LibraryHandler) renameAlbum(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	album, err := h.library.RenameAlbum(r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("album renamed", "id", album.ID(), "name", album.Name())
	writeJSON(w, http.StatusOK, album)
}

func (h *LibraryHandler) deleteAlbum(w http.ResponseWriter, r *http.Request) {
	if err := h.library.DeleteAlbum(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
