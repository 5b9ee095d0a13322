package api

import (
	"net/http"

	"github.com/hackgods/carelink-scheduling/internal/assistant"
)

// summarize leaves the sign-in check to the assistant, which words its own
// message for anonymous callers.
func (h *handlers) summarize(w http.ResponseWriter, r *http.Request) {
	var req AssistantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	out, err := h.assistant.Summarize(r.Context(), principalOf(r), assistant.Request{
		Intent:  req.Intent,
		Context: req.Context,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
