package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/pkg/httputil"
)

type CallHandlers struct {
	Call Call
}

// GET /call
func (h *CallHandlers) State(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.Call.State())
}

// POST /call/start
func (h *CallHandlers) Start(w http.ResponseWriter, r *http.Request) {
	var in StartCallRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	typ := domain.CallType(in.CallType)
	if in.CallType == "" {
		typ = domain.CallVideo
	}
	st, err := h.Call.StartCall(r.Context(), in.RoomID, typ)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, st)
}

// POST /call/join
func (h *CallHandlers) Join(w http.ResponseWriter, r *http.Request) {
	var in JoinCallRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	st, err := h.Call.JoinCall(r.Context(), in.RoomID)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, st)
}

// POST /call/end
func (h *CallHandlers) End(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.Call.EndCall(r.Context()))
}

// POST /call/mute
func (h *CallHandlers) ToggleMute(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, ToggleResponse{Value: h.Call.ToggleMute()})
}

// POST /call/video
func (h *CallHandlers) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, ToggleResponse{Value: h.Call.ToggleVideo()})
}

// POST /call/peers/{participantID}/offer
func (h *CallHandlers) Offer(w http.ResponseWriter, r *http.Request) {
	var in OfferRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	sdp, err := h.Call.AnswerOffer(r.Context(), chi.URLParam(r, "participantID"), in.SDP)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, AnswerResponse{SDP: sdp})
}
