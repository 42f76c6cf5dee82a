package api

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"durgatraders/m/internal/catalog"
)

func (h *Handler) listTiles(w http.ResponseWriter, r *http.Request) {
	tiles, err := h.tiles.List(r.Context())
	if err != nil {
		h.log.Error("list tiles", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch tiles")
		return
	}
	respondJSON(w, http.StatusOK, tiles)
}

func (h *Handler) lowStockTiles(w http.ResponseWriter, r *http.Request) {
	threshold := h.opts.LowStockThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "threshold must be a non-negative integer")
			return
		}
		threshold = n
	}
	tiles, err := h.tiles.LowStock(r.Context(), threshold)
	if err != nil {
		h.log.Error("list low stock tiles", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch tiles")
		return
	}
	respondJSON(w, http.StatusOK, tiles)
}

func (h *Handler) getTile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid tile id")
		return
	}
	tile, err := h.tiles.Get(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Tile not found")
		return
	}
	if err != nil {
		h.log.Error("get tile", zap.Int64("tile_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to fetch tile")
		return
	}
	respondJSON(w, http.StatusOK, tile)
}

func (h *Handler) createTile(w http.ResponseWriter, r *http.Request) {
	var req catalog.TileInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.tiles.Create(r.Context(), req)
	if err != nil {
		h.log.Error("create tile", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to add tile")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"message": "Tile added successfully", "id": id})
}

func (h *Handler) updateTile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid tile id")
		return
	}
	var req catalog.TileInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.tiles.Update(r.Context(), id, req)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Tile not found")
		return
	}
	if err != nil {
		h.log.Error("update tile", zap.Int64("tile_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to update tile")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Tile updated successfully"})
}

func (h *Handler) deleteTile(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid tile id")
		return
	}
	err := h.tiles.Delete(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Tile not found")
		return
	}
	if err != nil {
		h.log.Error("delete tile", zap.Int64("tile_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to delete tile")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Tile deleted successfully"})
}
