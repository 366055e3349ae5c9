package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
	"github.com/thaiproxy/searchproxy/internal/dictionary"
)

type compoundEntryDTO struct {
	Surface        string   `json:"surface"`
	Components     []string `json:"components,omitempty"`
	Category       string   `json:"category"`
	Confidence     float64  `json:"confidence"`
	OriginLanguage string   `json:"origin_language,omitempty"`
}

func toDTO(e dictionary.CompoundEntry) compoundEntryDTO {
	return compoundEntryDTO{
		Surface:        e.Surface,
		Components:     e.Components,
		Category:       e.Category,
		Confidence:     e.Confidence,
		OriginLanguage: e.OriginLanguage,
	}
}

type compoundsListResponse struct {
	Entries []compoundEntryDTO `json:"entries"`
	Total   int                `json:"total"`
}

// handleListCompounds implements GET /api/v1/compounds (spec §6),
// supporting category filtering and offset/limit pagination.
func (s *Server) handleListCompounds(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	entries := s.dict.Entries(category)

	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	total := len(entries)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	dtos := make([]compoundEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toDTO(e)
	}

	writeJSON(w, http.StatusOK, compoundsListResponse{Entries: dtos, Total: total})
}

// handleCreateCompound implements POST /api/v1/compounds (spec §6): 409 on
// duplicate surface.
func (s *Server) handleCreateCompound(w http.ResponseWriter, r *http.Request) {
	var dto compoundEntryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, apierrors.InvalidInput("malformed JSON body", err))
		return
	}

	entry := dictionary.CompoundEntry{
		Surface:        dto.Surface,
		Components:     dto.Components,
		Category:       dto.Category,
		Confidence:     dto.Confidence,
		OriginLanguage: dto.OriginLanguage,
	}

	if err := s.dict.Add(entry); err != nil {
		writeError(w, mapDictionaryError(err))
		return
	}

	added, _ := s.dict.Get(dto.Surface)
	writeJSON(w, http.StatusCreated, toDTO(added))
}

// handleUpdateCompound implements PUT /api/v1/compounds/{surface}.
func (s *Server) handleUpdateCompound(w http.ResponseWriter, r *http.Request) {
	surface := chi.URLParam(r, "surface")

	var dto compoundEntryDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, apierrors.InvalidInput("malformed JSON body", err))
		return
	}

	updated := dictionary.CompoundEntry{
		Surface:        surface,
		Components:     dto.Components,
		Category:       dto.Category,
		Confidence:     dto.Confidence,
		OriginLanguage: dto.OriginLanguage,
	}

	if err := s.dict.Update(surface, updated); err != nil {
		writeError(w, mapDictionaryError(err))
		return
	}

	result, _ := s.dict.Get(surface)
	writeJSON(w, http.StatusOK, toDTO(result))
}

// handleDeleteCompound implements DELETE /api/v1/compounds/{surface}.
func (s *Server) handleDeleteCompound(w http.ResponseWriter, r *http.Request) {
	surface := chi.URLParam(r, "surface")
	if err := s.dict.Remove(surface); err != nil {
		writeError(w, mapDictionaryError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mapDictionaryError(err error) error {
	switch err.(type) {
	case dictionary.ErrDuplicate:
		return apierrors.New(apierrors.KindConflict, err.Error(), err)
	case dictionary.ErrNotFound:
		return apierrors.New(apierrors.KindNotFound, err.Error(), err)
	default:
		return apierrors.InvalidInput(err.Error(), err)
	}
}
