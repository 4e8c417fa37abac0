package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/glasschat/internal/domain"
	"github.com/cwrk-planet/glasschat/pkg/httputil"
)

// multipartMemory is the in-memory part of a parsed upload.
const multipartMemory = 8 << 20

type RoomHandlers struct {
	Chat           Chat
	Attachments    Uploader
	MaxUploadBytes int64
}

// GET /users
func (h *RoomHandlers) Users(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.Chat.Users())
}

// GET /rooms
func (h *RoomHandlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.Chat.SortedRooms())
}

// POST /rooms
func (h *RoomHandlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var in CreateRoomRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		httputil.Error(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	kind := domain.RoomKind(in.Kind)
	if in.Kind == "" {
		kind = domain.RoomPrivate
	}
	out, err := h.Chat.CreateRoom(r.Context(), in.Name, kind, in.Participants)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, out)
}

// GET /rooms/new
func (h *RoomHandlers) OpenRoomCreation(w http.ResponseWriter, r *http.Request) {
	if err := h.Chat.OpenRoomCreation(r.Context()); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]bool{"opened": true})
}

// GET /rooms/active
func (h *RoomHandlers) ActiveRoom(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, ActiveRoomResponse{RoomID: h.Chat.ActiveRoom()})
}

// PUT /rooms/active
func (h *RoomHandlers) SetActiveRoom(w http.ResponseWriter, r *http.Request) {
	var in ActiveRoomRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	if !h.Chat.SetActiveRoom(in.RoomID) {
		httputil.Error(w, http.StatusNotFound, "room not found", nil)
		return
	}
	httputil.OK(w, ActiveRoomResponse{RoomID: h.Chat.ActiveRoom()})
}

// POST /rooms/{id}/join
func (h *RoomHandlers) Join(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Chat.JoinRoom(r.Context(), id); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, ActiveRoomResponse{RoomID: h.Chat.ActiveRoom()})
}

// POST /rooms/{id}/leave
func (h *RoomHandlers) Leave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Chat.LeaveRoom(r.Context(), id); err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, ActiveRoomResponse{RoomID: h.Chat.ActiveRoom()})
}

// POST /rooms/{id}/read
func (h *RoomHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Chat.MarkRead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.OK(w, map[string]int64{"marked": n})
}

// GET /rooms/{id}/messages
func (h *RoomHandlers) Messages(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.Chat.Messages(chi.URLParam(r, "id")))
}

// POST /rooms/{id}/messages
func (h *RoomHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var in SendMessageRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	kind := domain.MessageKind(in.Kind)
	if in.Kind == "" {
		kind = domain.MessageText
	}
	if strings.TrimSpace(in.Content) == "" {
		httputil.Error(w, http.StatusBadRequest, "content is required", nil)
		return
	}
	out, err := h.Chat.SendMessage(r.Context(), in.Content, chi.URLParam(r, "id"), kind)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, out)
}

// POST /rooms/{id}/attachments (multipart, field "file")
func (h *RoomHandlers) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	if h.Attachments == nil {
		httputil.Error(w, http.StatusNotImplemented, "attachments are disabled", nil)
		return
	}
	roomID := chi.URLParam(r, "id")
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "attachment too large", nil)
			return
		}
		httputil.Error(w, http.StatusBadRequest, "invalid multipart form", nil)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "file is required", nil)
		return
	}
	defer file.Close()

	up, err := h.Attachments.Upload(r.Context(), roomID, header.Filename, header.Header.Get("Content-Type"), file, header.Size)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	msg, err := h.Chat.SendMessage(r.Context(), up.URL, roomID, up.Kind)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	httputil.Created(w, map[string]any{"attachment": up, "message": msg})
}

// POST /messages/{id}/reactions
func (h *RoomHandlers) React(w http.ResponseWriter, r *http.Request) {
	var in ReactionRequest
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	id := chi.URLParam(r, "id")
	rs, err := h.Chat.AddReaction(r.Context(), id, in.Emoji)
	if err != nil {
		httputil.Fail(w, err)
		return
	}
	if rs == nil {
		rs = domain.Reactions{}
	}
	httputil.OK(w, ReactionResponse{MessageID: id, Reactions: rs})
}
