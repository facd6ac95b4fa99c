package live

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/sales-dashboard/internal/dashboard"
	"github.com/dvloznov/sales-dashboard/internal/domain"
	"github.com/dvloznov/sales-dashboard/internal/selection"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type mockRenderer struct {
	RenderFunc func(ctx context.Context, req selection.Request) (*dashboard.View, error)
}

func (m *mockRenderer) Render(ctx context.Context, req selection.Request) (*dashboard.View, error) {
	return m.RenderFunc(ctx, req)
}

// echoRenderer reflects the request back as the view selection.
func echoRenderer() *mockRenderer {
	return &mockRenderer{RenderFunc: func(ctx context.Context, req selection.Request) (*dashboard.View, error) {
		if req.Client == "broken" {
			return nil, &domain.ConnectionError{Op: "ping", Err: errors.New("refused")}
		}
		sel := domain.Selection{Client: req.Client, Course: req.Course}
		if req.Year != nil {
			sel.Year = *req.Year
		}
		return &dashboard.View{State: sel.State(), Selection: sel, Heading: dashboard.Heading(sel)}, nil
	}}
}

func dial(t *testing.T, h *Handler) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Outbound
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return msg
}

func TestLive_InitialViewThenSelections(t *testing.T) {
	conn := dial(t, NewHandler(echoRenderer(), zerolog.Nop()))

	first := read(t, conn)
	if first.Type != TypeView || first.View.State != domain.StateInitial {
		t.Fatalf("expected initial view, got %+v", first)
	}

	year := 2023
	if err := conn.WriteJSON(Inbound{Type: TypeSelect, Client: "Acme", Year: &year, Course: "Go"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	msg := read(t, conn)
	if msg.Type != TypeView || msg.View.State != domain.StateFullDrilldown {
		t.Fatalf("expected full drilldown view, got %+v", msg)
	}
	if msg.View.Heading != "Course Analysis of Acme for Year 2023" {
		t.Errorf("unexpected heading %q", msg.View.Heading)
	}
}

func TestLive_MessagesAnsweredInOrder(t *testing.T) {
	conn := dial(t, NewHandler(echoRenderer(), zerolog.Nop()))
	read(t, conn)

	clients := []string{"a", "b", "c", "d"}
	for _, c := range clients {
		if err := conn.WriteJSON(Inbound{Type: TypeSelect, Client: c}); err != nil {
			t.Fatalf("WriteJSON failed: %v", err)
		}
	}
	for _, want := range clients {
		if got := read(t, conn); got.View == nil || got.View.Selection.Client != want {
			t.Fatalf("expected view for %q, got %+v", want, got)
		}
	}
}

func TestLive_Errors(t *testing.T) {
	conn := dial(t, NewHandler(echoRenderer(), zerolog.Nop()))
	read(t, conn)

	tests := []struct {
		name     string
		raw      string
		wantType string
		wantCode string
	}{
		{"render failure", `{"type":"select","client":"broken"}`, TypeError, domain.CodeConnection},
		{"bad json", `{not json`, TypeError, "bad_message"},
		{"unknown type", `{"type":"dance"}`, TypeError, "bad_message"},
		{"negative year", `{"type":"select","client":"a","year":-1}`, TypeError, "bad_message"},
		{"ping", `{"type":"ping"}`, TypePong, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.raw)); err != nil {
				t.Fatalf("WriteMessage failed: %v", err)
			}
			msg := read(t, conn)
			if msg.Type != tt.wantType || msg.Code != tt.wantCode {
				t.Errorf("got %+v, want type %q code %q", msg, tt.wantType, tt.wantCode)
			}
		})
	}
}

func TestLive_UnregistersOnClose(t *testing.T) {
	h := NewHandler(echoRenderer(), zerolog.Nop())
	conn := dial(t, h)
	read(t, conn)

	if n := h.Connections(); n != 1 {
		t.Fatalf("expected 1 connection, got %d", n)
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for h.Connections() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := h.Connections(); n != 0 {
		t.Errorf("expected 0 connections after close, got %d", n)
	}
}
