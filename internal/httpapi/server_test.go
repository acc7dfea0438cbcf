package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mfalcone/duecall/internal/config"
	"github.com/mfalcone/duecall/internal/decision"
	"github.com/mfalcone/duecall/internal/directory"
	"github.com/mfalcone/duecall/internal/intent"
	"github.com/mfalcone/duecall/internal/journal"
	"github.com/mfalcone/duecall/internal/notify"
	"github.com/mfalcone/duecall/internal/orchestrator"
	"github.com/mfalcone/duecall/internal/payment"
	"github.com/mfalcone/duecall/internal/protocol"
	"github.com/mfalcone/duecall/internal/replies"
	"github.com/mfalcone/duecall/internal/risk"
	"github.com/mfalcone/duecall/internal/session"
)

func newTestServer(t *testing.T) (*Server, *session.Store) {
	t.Helper()

	dir := directory.NewStaticDirectory()
	dir.PutCustomer(directory.Customer{
		ID: "c1", Name: "Priya", Language: "en",
		Phone: "+15550100", Email: "priya@example.com",
	})
	dir.PutObligation(directory.Obligation{
		ID: "o1", CustomerID: "c1", AmountDue: 150,
		LoanAmount: 1000, Outstanding: 600,
		DueDate: time.Now().AddDate(0, 0, 3),
		Status:  directory.ObligationPending,
	})

	sessions := session.NewStore(time.Minute)
	scorer := risk.NewScorer()
	engine := decision.NewEngine(replies.NewCatalog(), 3)
	issuer := payment.NewIssuer(sessions, notify.NewMockChannel(), time.Second)
	core := orchestrator.New(
		sessions,
		intent.NewRuleClassifier(),
		scorer,
		engine,
		issuer,
		dir,
		journal.NewInMemoryStore(),
		nil,
	)

	return New(config.Config{AllowAnyOrigin: true}, sessions, core, nil), sessions
}

func postTurn(t *testing.T, ts *httptest.Server, body string) (*http.Response, orchestrator.TurnResult) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/turns", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/turns: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var res orchestrator.TurnResult
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatalf("decode turn result: %v", err)
		}
	}
	return resp, res
}

func TestHandleTurnStartsSession(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, res := postTurn(t, ts, `{"customer_id":"c1","utterance":"hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if res.SessionID == "" || res.Reply == "" {
		t.Fatalf("result = %+v", res)
	}
	if res.State != decision.StateListening {
		t.Fatalf("state = %s, want %s", res.State, decision.StateListening)
	}
}

func TestHandleTurnValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, _ := postTurn(t, ts, `{"utterance":"hello"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing customer_id status = %d", resp.StatusCode)
	}

	resp, _ = postTurn(t, ts, `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json status = %d", resp.StatusCode)
	}
}

func TestHandleTurnUnknownCustomer(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, _ := postTurn(t, ts, `{"customer_id":"ghost","utterance":"hello"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandleTurnStaleHintConflicts(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, _ := postTurn(t, ts, `{"customer_id":"c1","utterance":"hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first turn status = %d", resp.StatusCode)
	}

	resp, _ = postTurn(t, ts, `{"customer_id":"c1","utterance":"hi","session_id":"stale"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestGetAndEndSession(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	_, res := postTurn(t, ts, `{"customer_id":"c1","utterance":"hello"}`)

	resp, err := http.Get(ts.URL + "/v1/sessions/" + res.SessionID)
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", resp.StatusCode)
	}

	resp2, err := http.Post(ts.URL+"/v1/sessions/"+res.SessionID+"/end", "application/json", nil)
	if err != nil {
		t.Fatalf("POST end: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d", resp2.StatusCode)
	}

	var sess session.Session
	if err := json.NewDecoder(resp2.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.Status != session.StatusArchived {
		t.Fatalf("status = %s, want archived", sess.Status)
	}

	resp3, err := http.Get(ts.URL + "/v1/sessions/missing")
	if err != nil {
		t.Fatalf("GET missing: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Fatalf("missing status = %d", resp3.StatusCode)
	}
}

func TestTurnWebsocketStream(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/turns/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	err = conn.WriteJSON(protocol.CustomerTurn{
		Type:       protocol.TypeCustomerTurn,
		CustomerID: "c1",
		Utterance:  "hello",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	var reply protocol.BotReply
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.Type != protocol.TypeBotReply {
		t.Fatalf("type = %s", reply.Type)
	}
	if reply.SessionID == "" || reply.Reply == "" {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestTurnWebsocketRejectsBadMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/turns/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"audio_chunk"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var event protocol.ErrorEvent
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event.Type != protocol.TypeErrorEvent || event.Code != "invalid_client_message" {
		t.Fatalf("event = %+v", event)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, resp.StatusCode)
		}
	}
}
