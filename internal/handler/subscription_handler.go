// internal/handler/subscription_handler.go
package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/unclebandit/smsleopard-dispatch/internal/service"
)

// SubscriptionHandler exposes the transition engine to the import pipelines
type SubscriptionHandler struct {
	Service *service.SubscriptionService
}

type transitionPayload struct {
	ContactIDs []int64         `json:"contact_ids"`
	ChannelID  int64           `json:"channel_id"`
	Channel    string          `json:"channel,omitempty"`
	ExternalID string          `json:"external_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Activate handles POST /subscriptions/activate
func (h *SubscriptionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, true)
}

// Deactivate handles POST /subscriptions/deactivate
func (h *SubscriptionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, false)
}

func (h *SubscriptionHandler) transition(w http.ResponseWriter, r *http.Request, activate bool) {
	var body transitionPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body.ContactIDs) == 0 {
		http.Error(w, "contact_ids must not be empty", http.StatusBadRequest)
		return
	}

	channelID := body.ChannelID
	if channelID == 0 && body.Channel != "" {
		id, err := h.Service.ChannelID(r.Context(), body.Channel)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		channelID = id
	}
	if channelID == 0 {
		http.Error(w, "channel_id or channel is required", http.StatusBadRequest)
		return
	}

	var result interface{}
	var err error
	if activate {
		result, err = h.Service.Activate(r.Context(), body.ContactIDs, channelID, body.ExternalID, body.Payload)
	} else {
		result, err = h.Service.Deactivate(r.Context(), body.ContactIDs, channelID, body.ExternalID, body.Payload)
	}
	if err != nil {
		log.Println("subscription transition failed:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
