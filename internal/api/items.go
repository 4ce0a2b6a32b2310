package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"log/slog"

	"github.com/marcus/branger/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The CLI and tests connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type createListRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}
	list, err := s.store.CreateList(req.Name, "")
	if err != nil {
		slog.Error("create list", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "create list failed")
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.GetList(r.PathValue("id"))
	if err != nil {
		slog.Error("get list", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "get list failed")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "list not found")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.PathValue("id"))
	if err != nil {
		slog.Error("list items", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "list items failed")
		return
	}
	if items == nil {
		items = []models.ListItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type insertItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	RecipeID    string `json:"recipe_id"`
	DeviceID    string `json:"device_id"`
}

func (s *Server) handleInsertItem(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("id")

	var req insertItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	list, err := s.store.GetList(listID)
	if err != nil {
		slog.Error("insert item: get list", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "insert failed")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "list not found")
		return
	}

	item, err := s.store.InsertItem(listID, models.AddItemPayload{
		Name:        req.Name,
		Description: req.Description,
		Position:    req.Position,
		RecipeID:    req.RecipeID,
	})
	if err != nil {
		slog.Error("insert item", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "insert failed")
		return
	}

	s.hub.Broadcast(listID, req.DeviceID, models.RemoteEvent{Op: models.OpInsert, Row: *item})
	writeJSON(w, http.StatusCreated, item)
}

type updateItemRequest struct {
	Checked  *bool `json:"checked"`
	Position *int  `json:"position"`
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	deviceID := r.URL.Query().Get("device_id")

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid body")
		return
	}
	if req.Checked == nil && req.Position == nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "empty patch")
		return
	}

	item, err := s.store.UpdateItem(itemID, req.Checked, req.Position)
	if err != nil {
		slog.Error("update item", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "update failed")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "item not found")
		return
	}

	s.hub.Broadcast(item.ListID, deviceID, models.RemoteEvent{Op: models.OpUpdate, Row: *item})
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	deviceID := r.URL.Query().Get("device_id")

	// Look up the row first so the broadcast can carry its list id.
	item, err := s.store.GetItem(itemID)
	if err != nil {
		slog.Error("delete item: lookup", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "delete failed")
		return
	}

	removed, err := s.store.DeleteItem(itemID)
	if err != nil {
		slog.Error("delete item", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "delete failed")
		return
	}

	// Delete of an already-absent row succeeds: replay is at-least-once
	// and duplicate deletes must not surface as errors.
	if removed && item != nil {
		s.hub.Broadcast(item.ListID, deviceID, models.RemoteEvent{
			Op:  models.OpDelete,
			Row: models.ListItem{ID: itemID, ListID: item.ListID},
		})
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": removed})
}

// handleSubscribe upgrades to a websocket and streams change events for one
// list. Auth accepts either the Bearer header or an api_key query parameter.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if s.config.APIKey != "" {
		authorized := r.Header.Get("Authorization") == "Bearer "+s.config.APIKey ||
			r.URL.Query().Get("api_key") == s.config.APIKey
		if !authorized {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid api key")
			return
		}
	}

	listID := r.PathValue("id")
	deviceID := r.URL.Query().Get("device_id")

	list, err := s.store.GetList(listID)
	if err != nil {
		slog.Error("subscribe: get list", "err", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "subscribe failed")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "list not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("subscribe: upgrade", "err", err)
		return
	}

	s.hub.Attach(listID, deviceID, conn)
}
