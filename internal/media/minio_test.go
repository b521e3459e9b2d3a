package media

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/internal/storage"
)

func TestStoreAudioValidation(t *testing.T) {
	// Input validation fires before the client is touched, so a zero Store
	// is enough to exercise it.
	s := &Store{}
	ctx := context.Background()
	payload := []byte("audio-bytes")

	cases := []struct {
		name      string
		userID    string
		sessionID string
		data      []byte
	}{
		{"missing user", "", "s1", payload},
		{"missing session", "u1", "", payload},
		{"empty payload", "u1", "s1", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.StoreAudio(ctx, tc.userID, tc.sessionID, tc.data, "clip.mp3")
			if !errors.Is(err, storage.ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
			if errors.Is(err, ErrUnavailable) {
				t.Errorf("validation failure %v must not read as an outage", err)
			}
		})
	}
}

func TestObjectNameShape(t *testing.T) {
	name := objectName("u1", "sess-1", "clip.mp3")
	if !strings.HasPrefix(name, "audio/u1/sess-1/") {
		t.Errorf("object name %q missing user/session prefix", name)
	}
	if !strings.HasSuffix(name, ".mp3") {
		t.Errorf("object name %q lost the file extension", name)
	}
	if name == objectName("u1", "sess-1", "clip.mp3") {
		t.Error("object names must be unique per upload")
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"clip.mp3":  "audio/mpeg",
		"CLIP.WAV":  "audio/wav",
		"voice.ogg": "audio/ogg",
		"memo.m4a":  "audio/mp4",
		"blob.bin":  "application/octet-stream",
		"noext":     "application/octet-stream",
	}
	for filename, want := range cases {
		if got := contentTypeFor(filename); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", filename, got, want)
		}
	}
}
