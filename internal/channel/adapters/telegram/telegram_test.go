package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/imgbot/internal/channel"
)

const testToken = "123:abc"

type fakeBotAPI struct {
	mu      sync.Mutex
	calls   map[string][]map[string]string
	updates []tgbotapi.Update
	served  bool
}

func (f *fakeBotAPI) record(method string, r *http.Request) map[string]string {
	_ = r.ParseForm()
	params := map[string]string{}
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string][]map[string]string{}
	}
	f.calls[method] = append(f.calls[method], params)
	return params
}

func (f *fakeBotAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[method])
}

func (f *fakeBotAPI) last(method string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls[method]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/file/bot"+testToken+"/") {
		if strings.HasSuffix(r.URL.Path, "/missing.jpg") {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, "payload:"+strings.TrimPrefix(r.URL.Path, "/file/bot"+testToken+"/"))
		return
	}
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	params := f.record(method, r)
	var result any = true
	switch method {
	case "getMe":
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "img", "username": "imgbot"}
	case "sendMessage", "editMessageText":
		result = map[string]any{"message_id": 77, "date": 0, "chat": map[string]any{"id": 1, "type": "private"}, "text": params["text"]}
	case "getFile":
		path := "photos/" + params["file_id"] + ".jpg"
		result = map[string]any{"file_id": params["file_id"], "file_unique_id": "u", "file_path": path}
	case "getUpdates":
		f.mu.Lock()
		if f.served {
			f.mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			result = []tgbotapi.Update{}
			break
		}
		f.served = true
		result = f.updates
		f.mu.Unlock()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func newTestAdapter(t *testing.T, fake *fakeBotAPI) *Adapter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	a, err := New(nil, testToken,
		WithAPIEndpoint(srv.URL+"/bot%s/%s"),
		WithFileEndpoint(srv.URL+"/file/bot%s/%s"),
		WithHTTPClient(srv.Client()),
		WithUpdatesTimeout(1),
	)
	require.NoError(t, err)
	return a
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()

	_, err := New(nil, " ")
	assert.Error(t, err)
}

func TestNewAuthorizes(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{}
	a := newTestAdapter(t, fake)
	assert.Equal(t, "imgbot", a.Username())
	assert.Equal(t, 1, fake.count("getMe"))
}

func TestRepliesAndEdits(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{}
	a := newTestAdapter(t, fake)
	ctx := context.Background()

	require.NoError(t, a.SendTyping(ctx, 5))
	assert.Equal(t, "typing", fake.last("sendChatAction")["action"])

	ref, err := a.SendTextRef(ctx, 5, "Downloading image from Telegram server...")
	require.NoError(t, err)
	assert.Equal(t, channel.MessageRef{ChatID: 5, MessageID: 77}, ref)
	assert.Equal(t, "5", fake.last("sendMessage")["chat_id"])

	require.NoError(t, a.EditText(ctx, ref, "done"))
	assert.Equal(t, "77", fake.last("editMessageText")["message_id"])
	assert.Equal(t, "done", fake.last("editMessageText")["text"])

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, a.SendText(canceled, 5, "x"), context.Canceled)
}

func TestFetchFile(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{}
	a := newTestAdapter(t, fake)

	rc, err := a.FetchFile(context.Background(), "abc")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "payload:photos/abc.jpg", string(data))

	_, err = a.FetchFile(context.Background(), "missing")
	assert.ErrorContains(t, err, "http 404")

	_, err = a.FetchFile(context.Background(), "")
	assert.EqualError(t, err, "missing file_id")
}

type eventSink struct {
	mu     sync.Mutex
	events []channel.Event
}

func (s *eventSink) handle(_ context.Context, e channel.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *eventSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestPollingDispatchesUpdates(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{updates: []tgbotapi.Update{
		{UpdateID: 1, Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: 9, Type: "private"}, Text: "hi"}},
		{UpdateID: 2},
	}}
	a := newTestAdapter(t, fake)
	sink := &eventSink{}

	require.NoError(t, a.StartPolling(context.Background(), sink.handle))
	assert.Error(t, a.StartPolling(context.Background(), sink.handle))
	assert.Equal(t, 1, fake.count("deleteWebhook"))
	assert.Eventually(t, func() bool { return sink.len() == 1 }, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
	require.NoError(t, a.Stop(ctx))
	assert.Equal(t, channel.EventText, sink.events[0].Kind)
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{}
	a := newTestAdapter(t, fake)
	sink := &eventSink{}

	body := `{"update_id":3,"message":{"message_id":4,"date":1700000000,"chat":{"id":11,"type":"private"},"from":{"id":42,"is_bot":false,"first_name":"a","username":"alice"},"document":{"file_id":"doc","file_unique_id":"u","file_name":"a.png","mime_type":"image/png","file_size":10}}}`
	assert.ErrorIs(t, a.ReceiveWebhook(httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))), ErrNotStarted)

	require.NoError(t, a.StartWebhook(context.Background(), sink.handle, "https://bot.example.com/hook", ""))
	assert.Equal(t, "https://bot.example.com/hook", fake.last("setWebhook")["url"])

	require.NoError(t, a.ReceiveWebhook(httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body))))
	assert.Error(t, a.ReceiveWebhook(httptest.NewRequest(http.MethodGet, "/hook", nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))

	require.Equal(t, 1, sink.len())
	ev := sink.events[0]
	assert.Equal(t, channel.EventDocument, ev.Kind)
	assert.Equal(t, "doc", ev.FileID)
	assert.Equal(t, "image/png", ev.MimeHint)
	assert.Equal(t, int64(42), ev.UserID)
	assert.Equal(t, "alice", ev.Username)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ev.ReceivedAt)
}

func TestWebhookDeliveriesRaceStop(t *testing.T) {
	t.Parallel()

	fake := &fakeBotAPI{}
	a := newTestAdapter(t, fake)
	sink := &eventSink{}
	require.NoError(t, a.StartWebhook(context.Background(), sink.handle, "https://bot.example.com/hook", ""))

	body := `{"update_id":5,"message":{"message_id":6,"date":1700000000,"chat":{"id":11,"type":"private"},"text":"hi"}}`
	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := a.ReceiveWebhook(httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(body)))
			if err == nil {
				accepted.Add(1)
				return
			}
			assert.ErrorIs(t, err, ErrNotStarted)
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
	wg.Wait()

	assert.Equal(t, int(accepted.Load()), sink.len())
}
