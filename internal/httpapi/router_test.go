package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chatrelay/internal/ai"
	"github.com/suPer8Hu/chatrelay/internal/chat"
	"github.com/suPer8Hu/chatrelay/internal/config"
	"github.com/suPer8Hu/chatrelay/internal/httpapi/handlers"
	"github.com/suPer8Hu/chatrelay/internal/session"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeProvider struct {
	reply   string
	chunks  []string
	err     error
	models  []string
	listErr error
}

func (p *fakeProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

func (p *fakeProvider) StreamChat(ctx context.Context, messages []ai.Message) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		for _, c := range p.chunks {
			select {
			case chunks <- c:
			case <-ctx.Done():
				return
			}
		}
		if p.err != nil {
			errs <- p.err
		}
	}()
	return chunks, errs
}

func (p *fakeProvider) ListModels(ctx context.Context) ([]string, error) {
	return p.models, p.listErr
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// client is one browser: it carries its session cookie between requests.
type client struct {
	t       *testing.T
	r       *gin.Engine
	cookies map[string]*http.Cookie
}

type testServer struct {
	r     *gin.Engine
	store chat.Store
	prov  *fakeProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := chat.NewFileStore(t.TempDir())
	require.NoError(t, err)

	prov := &fakeProvider{reply: "ok", models: []string{"m1", "m2"}}
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		return prov, nil
	})

	cfg := config.Config{
		AIProvider:    "fake",
		SessionSecret: "test-secret",
		SessionTTL:    time.Hour,
	}
	svc := chat.NewService(store, reg)
	h := handlers.NewHandler(cfg, svc, chat.NewDispatcher(store, nil, nil), reg, session.NewMemoryStore(), zap.NewNop())
	return &testServer{r: NewRouter(cfg, h, zap.NewNop()), store: store, prov: prov}
}

func (s *testServer) client(t *testing.T) *client {
	return &client{t: t, r: s.r, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path, contentType, body string, headers ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.r.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) postJSON(path, body string, headers ...string) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, path, "application/json", body, headers...)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

type replyData struct {
	Reply   string `json:"reply"`
	Command bool   `json:"command"`
	Chat    string `json:"chat"`
}

func (c *client) send(message string) replyData {
	c.t.Helper()
	w := c.postJSON("/send_message", `{"message":`+quote(message)+`,"stream":false}`)
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
	var d replyData
	decode(c.t, w, &d)
	return d
}

// history fetches /get_history, which is a bare JSON array of turns.
func (c *client) history() []map[string]string {
	c.t.Helper()
	w := c.do(http.MethodGet, "/get_history", "", "")
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
	var out []map[string]string
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

type sseEvent struct {
	event string
	data  map[string]string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var out []sseEvent
	for _, frame := range strings.Split(strings.TrimSpace(body), "\n\n") {
		var ev sseEvent
		for _, line := range strings.Split(frame, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.data))
			}
		}
		out = append(out, ev)
	}
	return out
}

func TestPingAndUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	w := c.do(http.MethodGet, "/ping", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodGet, "/nope", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, 40400, decode(t, w, nil).Code)

	w = c.do(http.MethodDelete, "/send_message", "", "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestIndex_RedirectsUntilProviderAndModelChosen(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	w := c.do(http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/select_mode", w.Header().Get("Location"))

	w = c.postJSON("/select_mode", `{"mode":"FAKE"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/select_model", w.Header().Get("Location"))

	w = c.postJSON("/select_model", `{"model":"m2"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = c.do(http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "fake / m2")
}

func TestSelectMode(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	w := c.do(http.MethodGet, "/select_mode", "", "")
	var data struct {
		Providers []string `json:"providers"`
		Current   string   `json:"current"`
	}
	decode(t, w, &data)
	require.Equal(t, []string{"fake"}, data.Providers)
	require.Empty(t, data.Current)

	w = c.postJSON("/select_mode", `{"mode":"gpt-9000"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 10002, decode(t, w, nil).Code)

	form := url.Values{"mode": {"fake"}}.Encode()
	w = c.do(http.MethodPost, "/select_mode", "application/x-www-form-urlencoded", form)
	require.Equal(t, http.StatusSeeOther, w.Code)
	require.Equal(t, "/select_model", w.Header().Get("Location"))

	w = c.do(http.MethodGet, "/select_mode", "", "", "Accept", "text/html")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `<option value="fake" selected>`)
}

func TestSelectModel(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	w := c.do(http.MethodGet, "/select_model", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Provider string   `json:"provider"`
		Models   []string `json:"models"`
	}
	decode(t, w, &data)
	require.Equal(t, "fake", data.Provider)
	require.Equal(t, []string{"m1", "m2"}, data.Models)

	w = c.postJSON("/select_model", `{"model":"  "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	s.prov.listErr = errors.New("dial tcp: connection refused")
	w = c.do(http.MethodGet, "/select_model", "", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Equal(t, 50201, decode(t, w, nil).Code)
}

func TestSendMessage_BatchAndHistory(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	d := c.send("Hello")
	require.Equal(t, "ok", d.Reply)
	require.False(t, d.Command)

	require.Equal(t, []map[string]string{
		{"role": "user", "content": "Hello"},
		{"role": "assistant", "content": "ok"},
	}, c.history())
}

func TestGetHistory_EmptyChatIsEmptyArray(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	w := c.do(http.MethodGet, "/get_history", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `[]`, w.Body.String())
}

func TestSendMessage_ValidationErrors(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	w := c.postJSON("/send_message", `{"text":"hi"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 10001, decode(t, w, nil).Code)

	w = c.postJSON("/send_message", `{not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessage_CommandsMovePointer(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	d := c.send("/chat open testchat")
	require.True(t, d.Command)
	require.Equal(t, "Opened chat testchat.", d.Reply)

	d = c.send("/chat list")
	require.Equal(t, "default, testchat", d.Reply)

	c.send("hi there")
	got, err := s.store.Load(context.Background(), "testchat")
	require.NoError(t, err)
	require.Len(t, got, 2)
	def, err := s.store.Load(context.Background(), chat.DefaultChat)
	require.NoError(t, err)
	require.Empty(t, def)

	d = c.send("/chat delete")
	require.Equal(t, "Chat testchat deleted.", d.Reply)
	require.Equal(t, chat.DefaultChat, d.Chat)
}

func TestSendMessage_DeleteDefaultIsAcknowledged(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)
	c.send("keep me")

	d := c.send("/chat delete")
	require.Equal(t, "The default chat cannot be deleted.", d.Reply)

	got, err := s.store.Load(context.Background(), chat.DefaultChat)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestSendMessage_PointersArePerClient(t *testing.T) {
	s := newTestServer(t)
	alice, bob := s.client(t), s.client(t)

	alice.send("/chat open alice")
	alice.send("from alice")
	bob.send("from bob")

	a, err := s.store.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "from alice", a[0].Content)

	d, err := s.store.Load(context.Background(), chat.DefaultChat)
	require.NoError(t, err)
	require.Equal(t, "from bob", d[0].Content)
}

func TestSendMessage_UpstreamFailure(t *testing.T) {
	s := newTestServer(t)
	s.prov.err = errors.New("status 503")
	c := s.client(t)

	w := c.postJSON("/send_message", `{"message":"anyone?","stream":false}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 50201, decode(t, w, nil).Code)

	got, err := s.store.Load(context.Background(), chat.DefaultChat)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, chat.RoleUser, got[0].Role)
}

func TestSendMessage_StreamsFragments(t *testing.T) {
	s := newTestServer(t)
	s.prov.chunks = []string{"Hel", "lo", " world"}
	c := s.client(t)

	w := c.postJSON("/send_message", `{"message":"greet me"}`, "Accept", "text/event-stream")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 4)
	for i, want := range []string{"Hel", "lo", " world"} {
		require.Equal(t, "chunk", events[i].event)
		require.Equal(t, want, events[i].data["content"])
	}
	require.Equal(t, "done", events[3].event)

	got, err := s.store.Load(context.Background(), chat.DefaultChat)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "Hello world", got[1].Content)
}

func TestSendMessage_StreamErrorEvent(t *testing.T) {
	s := newTestServer(t)
	s.prov.chunks = []string{"par"}
	s.prov.err = errors.New("reset by peer")
	c := s.client(t)

	w := c.postJSON("/send_message", `{"message":"q","stream":true}`)
	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 2)
	require.Equal(t, "chunk", events[0].event)
	require.Equal(t, "error", events[1].event)
	require.Equal(t, "failed to connect to model server", events[1].data["message"])
}

func TestSendMessage_StreamFailureBeforeFirstChunkIsJSONError(t *testing.T) {
	s := newTestServer(t)
	s.prov.err = errors.New("connection refused")
	c := s.client(t)

	w := c.postJSON("/send_message", `{"message":"q","stream":true}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotEqual(t, "text/event-stream", w.Header().Get("Content-Type"))
	require.Equal(t, 50201, decode(t, w, nil).Code)

	got, err := s.store.Load(context.Background(), chat.DefaultChat)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, chat.RoleUser, got[0].Role)
}

func TestSendMessage_EmptyStreamStillSendsDone(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	w := c.postJSON("/send_message", `{"message":"q","stream":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 1)
	require.Equal(t, "done", events[0].event)
}

func TestSendMessage_DeletedChatFallsBackForOtherClients(t *testing.T) {
	s := newTestServer(t)
	alice, bob := s.client(t), s.client(t)
	ctx := context.Background()

	alice.send("/chat open shared")
	bob.send("/chat open shared")
	bob.send("before delete")

	d := alice.send("/chat delete")
	require.Equal(t, "Chat shared deleted.", d.Reply)

	require.Empty(t, bob.history())
	d = bob.send("after delete")
	require.Equal(t, chat.DefaultChat, d.Chat)

	names, err := s.store.List(ctx)
	require.NoError(t, err)
	require.NotContains(t, names, "shared")

	def, err := s.store.Load(ctx, chat.DefaultChat)
	require.NoError(t, err)
	require.Len(t, def, 2)
	require.Equal(t, "after delete", def[0].Content)
}

func TestSendMessage_RenamedChatFallsBackForOtherClients(t *testing.T) {
	s := newTestServer(t)
	alice, bob := s.client(t), s.client(t)
	ctx := context.Background()

	alice.send("/chat open draft")
	bob.send("/chat open draft")
	alice.send("/chat rename final")

	d := bob.send("/chat list")
	require.Equal(t, "default, final", d.Reply)

	d = bob.send("still there?")
	require.Equal(t, chat.DefaultChat, d.Chat)

	ok, err := s.store.Exists(ctx, "draft")
	require.NoError(t, err)
	require.False(t, ok)
	final, err := s.store.Load(ctx, "final")
	require.NoError(t, err)
	require.Empty(t, final)
}

func TestSendMessage_OverlongChatNameRejected(t *testing.T) {
	s := newTestServer(t)
	c := s.client(t)

	long := strings.Repeat("x", chat.MaxNameBytes+1)
	w := c.postJSON("/send_message", `{"message":"/chat open `+long+`","stream":false}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, 10001, decode(t, w, nil).Code)

	d := c.send("/chat open " + strings.Repeat("x", chat.MaxNameBytes))
	require.Equal(t, strings.Repeat("x", chat.MaxNameBytes), d.Chat)
}
