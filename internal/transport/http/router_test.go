package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cwrk-planet/glasschat/internal/attachments"
	"github.com/cwrk-planet/glasschat/internal/backend/backendtest"
	"github.com/cwrk-planet/glasschat/internal/call"
	"github.com/cwrk-planet/glasschat/internal/chat"
	"github.com/cwrk-planet/glasschat/internal/ident"
	"github.com/cwrk-planet/glasschat/internal/identity"
	"github.com/cwrk-planet/glasschat/internal/media"
	"github.com/cwrk-planet/glasschat/internal/notify"
	"github.com/cwrk-planet/glasschat/internal/security"
	"github.com/cwrk-planet/glasschat/internal/session"
	transporthttp "github.com/cwrk-planet/glasschat/internal/transport/http"
)

type devices struct{}

func (devices) GetUserMedia(_ context.Context, c media.Constraints) (*media.Stream, error) {
	st := media.NewStream(ident.New(), media.NewTrack(ident.New(), media.KindAudio))
	if c.Video {
		st.AddTrack(media.NewTrack(ident.New(), media.KindVideo))
	}
	return st, nil
}

type api struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	key, err := security.GenerateEphemeralKey()
	if err != nil {
		t.Fatal(err)
	}
	signer := security.NewJWTSigner(key, &key.PublicKey, "chatd", "", time.Minute, time.Second)

	env := backendtest.New(t)
	provider := identity.NewProvider(env.Repos.Credentials, env.Repos.Sessions, env.Backend, signer,
		time.Hour, security.BcryptConfig{Cost: bcrypt.MinCost, MinLength: 6}, nil)

	prefs := session.NewPreferences()
	notifier := notify.NewBroadcaster(prefs.NotificationsEnabled, &notify.Recorder{})
	var sess *session.Store
	chatStore := chat.New(env.Backend, chat.IdentityFunc(func() string { return sess.UserID() }))
	sess = session.New(provider, env.Backend, chatStore, notifier, prefs, time.Hour)
	callStore := call.New(env.Backend, devices{}, nil, notifier, sess)
	sess.SetCall(callStore)
	sess.Init(context.Background())

	files, err := attachments.NewLocalStorage(t.TempDir(), "/attachments/")
	if err != nil {
		t.Fatal(err)
	}

	h := transporthttp.NewRouter(transporthttp.Deps{
		Identity:       provider,
		Session:        sess,
		Chat:           chatStore,
		Call:           callStore,
		Attachments:    attachments.NewService(files, 1<<20, time.Hour),
		Files:          http.FileServer(http.Dir(files.BasePath())),
		FilesPrefix:    files.PublicPrefix(),
		MaxUploadBytes: 1 << 20,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		callStore.Close()
		sess.Close()
		chatStore.Reset()
	})
	return &api{t: t, srv: srv}
}

func (a *api) do(method, path string, body any, out any) int {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, a.srv.URL+path, r)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return a.send(req, out)
}

func (a *api) send(req *http.Request, out any) int {
	a.t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && len(env.Data) > 0 {
			_ = json.Unmarshal(env.Data, out)
		}
	}
	return resp.StatusCode
}

func TestAPI_ChatFlow(t *testing.T) {
	a := newAPI(t)

	if code := a.do(http.MethodGet, "/health", nil, nil); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
	if code := a.do(http.MethodGet, "/rooms", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("rooms signed out = %d", code)
	}

	var sess identity.Session
	code := a.do(http.MethodPost, "/auth/signup",
		transporthttp.SignUpRequest{Email: "u@example.com", Password: "secret1", Name: "U"}, &sess)
	if code != http.StatusCreated || sess.AccessToken == "" {
		t.Fatalf("signup = %d, %+v", code, sess)
	}
	a.token = sess.AccessToken

	var rooms []struct {
		ID string `json:"id"`
	}
	if code := a.do(http.MethodGet, "/rooms", nil, &rooms); code != http.StatusOK || len(rooms) == 0 || rooms[0].ID != ident.CommunityRoomID {
		t.Fatalf("rooms = %d, %+v", code, rooms)
	}

	var msg struct {
		ID      string `json:"id"`
		Content string `json:"content"`
		Kind    string `json:"kind"`
	}
	code = a.do(http.MethodPost, "/rooms/"+ident.CommunityRoomID+"/messages",
		transporthttp.SendMessageRequest{Content: "hello"}, &msg)
	if code != http.StatusCreated || msg.Content != "hello" || msg.Kind != "text" {
		t.Fatalf("send = %d, %+v", code, msg)
	}

	var react transporthttp.ReactionResponse
	a.do(http.MethodPost, "/messages/"+msg.ID+"/reactions", transporthttp.ReactionRequest{Emoji: "👍"}, &react)
	if got := react.Reactions["👍"]; len(got) != 1 || got[0] != sess.UserID {
		t.Fatalf("react = %+v", react)
	}
	react = transporthttp.ReactionResponse{}
	a.do(http.MethodPost, "/messages/"+msg.ID+"/reactions", transporthttp.ReactionRequest{Emoji: "👍"}, &react)
	if _, ok := react.Reactions["👍"]; ok {
		t.Fatalf("unreact = %+v", react)
	}

	if code := a.do(http.MethodGet, "/rooms/new", nil, nil); code != http.StatusNotImplemented {
		t.Fatalf("room creation flow = %d", code)
	}
	if code := a.do(http.MethodPost, "/rooms/not-a-uuid/messages", transporthttp.SendMessageRequest{Content: "x"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad room id = %d", code)
	}

	var created struct {
		ID string `json:"id"`
	}
	if code := a.do(http.MethodPost, "/rooms", transporthttp.CreateRoomRequest{Name: "team"}, &created); code != http.StatusCreated {
		t.Fatalf("create room = %d", code)
	}
	var active transporthttp.ActiveRoomResponse
	a.do(http.MethodGet, "/rooms/active", nil, &active)
	if active.RoomID != created.ID {
		t.Fatalf("active = %q, want %q", active.RoomID, created.ID)
	}
	if code := a.do(http.MethodPost, "/rooms/"+created.ID+"/leave", nil, nil); code != http.StatusConflict {
		t.Fatalf("creator leave = %d", code)
	}

	if code := a.do(http.MethodPost, "/auth/logout", nil, nil); code != http.StatusOK {
		t.Fatalf("logout = %d", code)
	}
	if code := a.do(http.MethodGet, "/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d", code)
	}
}

func TestAPI_CallAndAttachments(t *testing.T) {
	a := newAPI(t)
	var sess identity.Session
	a.do(http.MethodPost, "/auth/signup", transporthttp.SignUpRequest{Email: "c@example.com", Password: "secret1", Name: "C"}, &sess)
	a.token = sess.AccessToken

	var st call.State
	code := a.do(http.MethodPost, "/call/start", transporthttp.StartCallRequest{RoomID: ident.CommunityRoomID, CallType: "audio"}, &st)
	if code != http.StatusOK || !st.Active || st.LocalTracks != 1 {
		t.Fatalf("start = %d, %+v", code, st)
	}
	if code := a.do(http.MethodPost, "/call/start", transporthttp.StartCallRequest{RoomID: ident.CommunityRoomID}, nil); code != http.StatusConflict {
		t.Fatalf("second start = %d", code)
	}
	var toggled transporthttp.ToggleResponse
	a.do(http.MethodPost, "/call/mute", nil, &toggled)
	if !toggled.Value {
		t.Fatal("mute not reported")
	}
	st = call.State{}
	a.do(http.MethodPost, "/call/end", nil, &st)
	if st.Active || st.LocalTracks != 0 {
		t.Fatalf("end = %+v", st)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {`form-data; name="file"; filename="cat.png"`},
		"Content-Type":        {"image/png"},
	})
	part.Write([]byte("not really a png"))
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, a.srv.URL+"/rooms/"+ident.CommunityRoomID+"/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+a.token)
	var out struct {
		Attachment attachments.Upload `json:"attachment"`
		Message    struct {
			Content string `json:"content"`
			Kind    string `json:"kind"`
		} `json:"message"`
	}
	if code := a.send(req, &out); code != http.StatusCreated {
		t.Fatalf("upload = %d", code)
	}
	if out.Message.Kind != "image" || out.Message.Content != out.Attachment.URL {
		t.Fatalf("upload = %+v", out)
	}

	resp, err := http.Get(a.srv.URL + out.Attachment.URL)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(data) != "not really a png" {
		t.Fatalf("file = %d %q", resp.StatusCode, data)
	}

	var prefs session.PreferenceValues
	a.do(http.MethodPost, "/preferences/sound/toggle", nil, &prefs)
	if prefs.Sound || !prefs.Notifications {
		t.Fatalf("prefs = %+v", prefs)
	}
}
