package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"

	"citysim/internal/control"
	"citysim/internal/persistence/slots"
	"citysim/internal/protocol"
	"citysim/internal/sim/city"
)

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	hub := NewHub(logger)

	cy, err := city.New(city.Config{Name: "springfield", Logger: logger, StateSinks: []city.StateSink{hub}})
	if err != nil {
		t.Fatalf("city.New: %v", err)
	}
	cy.Pause()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = cy.Run(ctx)
	}()

	store, err := slots.OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	ctl, err := control.New(control.Config{City: cy, Slots: store, Publish: hub.PublishState, Logger: logger})
	if err != nil {
		t.Fatalf("control.New: %v", err)
	}
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	srv := httptest.NewServer(NewServer(hub, ctl, v, logger).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		_ = store.Close()
	})
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readType reads messages until one of type typ arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", typ, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type == typ {
			return msg
		}
	}
}

func TestServer_StateOnConnectAndPlace(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	var st protocol.StateMsg
	if err := json.Unmarshal(readType(t, conn, protocol.TypeState), &st); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if st.City != "springfield" || st.Day != 1 || len(st.Buildings) != 0 {
		t.Fatalf("initial state mismatch: %+v", st)
	}
	if st.BudgetText != "1,000,000.00" {
		t.Fatalf("budget_text: got %q", st.BudgetText)
	}

	cmd := `{"type":"PLACE","id":"c1","kind":"COMMERCIAL","pos":[2,0,2]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var res protocol.ResultMsg
	if err := json.Unmarshal(readType(t, conn, protocol.TypeResult), &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !res.OK || res.AckFor != "c1" || res.Building == nil || res.Building.Kind != "COMMERCIAL" {
		t.Fatalf("result mismatch: %+v", res)
	}
}

func TestServer_InvalidCommand(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	readType(t, conn, protocol.TypeState)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"REPAIR","id":"x"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var res protocol.ResultMsg
	if err := json.Unmarshal(readType(t, conn, protocol.TypeResult), &res); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if res.OK || res.Code != protocol.ErrBadRequest || res.AckFor != "x" {
		t.Fatalf("result mismatch: %+v", res)
	}
}

func TestHub_SendLatestKeepsNewest(t *testing.T) {
	ch := make(chan []byte, 1)
	sendLatest(ch, []byte("a"))
	sendLatest(ch, []byte("b"))
	if got := string(<-ch); got != "b" {
		t.Fatalf("got %q want b", got)
	}
}

func TestHub_PublishStateFansOut(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := NewHub(logger)
	a, b := h.add(), h.add()
	h.PublishState(city.StateView{City: "x", State: city.State{Day: 3}})
	for _, c := range []*client{a, b} {
		var st protocol.StateMsg
		if err := json.Unmarshal(<-c.state, &st); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if st.Day != 3 {
			t.Fatalf("day: got %d want 3", st.Day)
		}
	}
	h.remove(a)
	if h.Clients() != 1 {
		t.Fatalf("clients: got %d want 1", h.Clients())
	}
}
