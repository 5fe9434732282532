package httpapi

import (
	"net/http"
	"strings"
	"time"

	"harvestbid.org/internal/chat"
)

type sendMessageRequest struct {
	Body string `json:"body"`
}

func (a *API) authorizeChat(w http.ResponseWriter, r *http.Request, cropID string) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	grant, err := a.core.AuthorizeChat(r.Context(), cropID, principal.UserID, principal.Role)
	if err != nil {
		handleCoreError(w, r, err)
		return
	}

	counterpartName := ""
	if user, err := a.users.UserByID(r.Context(), grant.CounterpartID); err == nil {
		counterpartName = user.Username
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"crop_id":          grant.CropID,
		"role":             grant.Role,
		"counterpart_id":   grant.CounterpartID,
		"counterpart_name": counterpartName,
	})
}

func (a *API) handleMessages(w http.ResponseWriter, r *http.Request, cropID string) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		msgs, err := a.core.Messages(r.Context(), cropID, principal.UserID, principal.Role)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		a.enrichNames(r, msgs)
		if msgs == nil {
			msgs = []chat.Message{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": msgs,
			"as_of": time.Now().UTC(),
		})
	case http.MethodPost:
		var req sendMessageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Body) == "" {
			writeError(w, r, http.StatusBadRequest, "message body is required")
			return
		}
		msg, err := a.core.SendMessage(r.Context(), cropID, principal.UserID, principal.Role, req.Body)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		one := []chat.Message{msg}
		a.enrichNames(r, one)
		writeJSON(w, http.StatusCreated, one[0])
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// enrichNames fills in display names without failing the request when a user
// record is gone.
func (a *API) enrichNames(r *http.Request, msgs []chat.Message) {
	names := make(map[string]string)
	lookup := func(id string) string {
		if id == "" {
			return ""
		}
		if name, ok := names[id]; ok {
			return name
		}
		name := ""
		if user, err := a.users.UserByID(r.Context(), id); err == nil {
			name = user.Username
		}
		names[id] = name
		return name
	}
	for i := range msgs {
		msgs[i].SenderName = lookup(msgs[i].SenderID)
		msgs[i].ReceiverName = lookup(msgs[i].ReceiverID)
	}
}
