package source

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func Test_decodeFrame(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantEvent string
		wantData  string
		wantErr   bool
	}{
		{
			name:      "tagged event frame",
			raw:       `{"event":"realtime-event","data":{"type":"typing","data":{"conversationId":"c1"}}}`,
			wantEvent: "realtime-event",
			wantData:  `{"type":"typing","data":{"conversationId":"c1"}}`,
		},
		{
			name:      "raw streaming frame",
			raw:       `{"event":"messageStreaming","data":{"conversationId":"c1","chunk":"x"}}`,
			wantEvent: "messageStreaming",
			wantData:  `{"conversationId":"c1","chunk":"x"}`,
		},
		{
			name:    "missing event name",
			raw:     `{"data":{}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `ping`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := decodeFrame([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if frame.Event != tt.wantEvent || string(frame.Data) != tt.wantData {
				t.Errorf("decodeFrame() = (%q, %s), want (%q, %s)", frame.Event, frame.Data, tt.wantEvent, tt.wantData)
			}
		})
	}
}

func TestWebsocketSource_ForwardsFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Repeat the frame so the handler attached after dialing sees it.
		frame := []byte(`{"event":"realtime-event","data":{"type":"userJoined","data":{"conversationId":"c1","userId":"u1"}}}`)
		for i := 0; i < 200; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	src, err := NewWebsocketSource(url)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	received := make(chan []byte, 1)
	src.On("realtime-event", func(payload []byte) {
		select {
		case received <- payload:
		default:
		}
	})

	select {
	case payload := <-received:
		if !strings.Contains(string(payload), `"userJoined"`) {
			t.Errorf("unexpected payload: %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no frame forwarded within 5s")
	}

	if err := src.HealthCheck(); err != nil {
		t.Errorf("HealthCheck() = %v, want nil while connected", err)
	}
}

func TestWebsocketSource_DialFailure(t *testing.T) {
	if _, err := NewWebsocketSource("ws://127.0.0.1:1/nope"); err == nil {
		t.Error("NewWebsocketSource() succeeded against a closed port")
	}
}
