package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/threadline-ai/chat-platform/internal/llm"
	"github.com/threadline-ai/chat-platform/internal/middleware"
	"github.com/threadline-ai/chat-platform/internal/service"
	"github.com/threadline-ai/chat-platform/internal/store"
	"github.com/threadline-ai/chat-platform/pkg/logger"
)

const testSecret = "test-secret"

// testServer bundles the router and the services behind it so tests can
// arrange state directly.
type testServer struct {
	router  chi.Router
	convSvc *service.ConversationService
	msgSvc  *service.MessageService
	fake    *llm.FakeClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mem := store.NewMemory()
	log := logger.NewNop()
	fake := llm.NewFakeClient("streamed ", "reply")

	convSvc := service.NewConversationService(mem.Conversations(), nil, log)
	msgSvc := service.NewMessageService(mem.Messages(), convSvc, nil, log)
	chatSvc := service.NewChatService(mem.Messages(), convSvc, fake, "test-model", nil, log)

	conversationHandler := NewConversationHandler(convSvc, log)
	messageHandler := NewMessageHandler(msgSvc, log)
	chatHandler := NewChatHandler(chatSvc, log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(testSecret))

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Put("/", conversationHandler.Update)
				r.Delete("/", conversationHandler.Delete)
			})
		})
		r.Route("/messages", func(r chi.Router) {
			r.Get("/", messageHandler.List)
			r.Post("/", messageHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", messageHandler.Update)
				r.Delete("/", messageHandler.Delete)
				r.Delete("/after", messageHandler.DeleteTail)
				r.Post("/regenerate", chatHandler.Regenerate)
			})
		})
		r.Post("/chat", chatHandler.Chat)
	})

	return &testServer{
		router:  r,
		convSvc: convSvc,
		msgSvc:  msgSvc,
		fake:    fake,
	}
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// doJSON performs an authenticated request with an optional JSON body and
// returns the recorded response.
func (ts *testServer) doJSON(t *testing.T, method, path, subject string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+signToken(t, subject))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	Event string
	Data  string
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	for _, line := range bytes.Split([]byte(body), []byte("\n")) {
		s := string(line)
		switch {
		case len(s) == 0:
			if current.Event != "" || current.Data != "" {
				events = append(events, current)
				current = sseEvent{}
			}
		case len(s) > 7 && s[:7] == "event: ":
			current.Event = s[7:]
		case len(s) > 6 && s[:6] == "data: ":
			current.Data = s[6:]
		}
	}
	return events
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, "body: %s", rec.Body.String())
}
