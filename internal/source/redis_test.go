package source

import (
	"reflect"
	"testing"

	"github.com/convoline/bridge/internal/models"
)

func TestSubscribedChannels(t *testing.T) {
	want := []string{
		"realtime-event",
		"messageStreaming",
		"messageStreamStarted",
		"messageStreamEnded",
	}
	if !reflect.DeepEqual(subscribedChannels, want) {
		t.Errorf("subscribedChannels = %v, want %v", subscribedChannels, want)
	}
	if subscribedChannels[0] != models.ChannelRealtimeEvent {
		t.Errorf("generic channel = %q, want %q", subscribedChannels[0], models.ChannelRealtimeEvent)
	}
}

func TestRedisSource_Dispatch(t *testing.T) {
	s := &RedisSource{handlers: make(map[string][]func(payload []byte))}

	var got []string
	s.On("realtime-event", func(payload []byte) { got = append(got, string(payload)) })
	s.dispatch("realtime-event", []byte("one"))
	s.dispatch("unrelated", []byte("two"))

	if !reflect.DeepEqual(got, []string{"one"}) {
		t.Errorf("handler saw %v, want [one]", got)
	}

	s.RemoveAllListeners()
	s.dispatch("realtime-event", []byte("three"))
	if len(got) != 1 {
		t.Errorf("handler saw %d payloads after RemoveAllListeners, want 1", len(got))
	}
}
