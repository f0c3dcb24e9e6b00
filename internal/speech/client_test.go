package speech

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestClient_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "clip.wav", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("fake-audio"), data)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "Is Apollo Hospital in network?"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", STTModel: "whisper-1"}, testLogger())

	text, err := client.Transcribe(context.Background(), []byte("fake-audio"), "clip.wav")
	require.NoError(t, err)
	assert.Equal(t, "Is Apollo Hospital in network?", text)
}

func TestClient_Transcribe_EmptyAudio(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused", APIKey: "test-key"}, testLogger())

	_, err := client.Transcribe(context.Background(), nil, "clip.wav")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscription))
}

func TestClient_Transcribe_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream failure"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"}, testLogger())

	_, err := client.Transcribe(context.Background(), []byte("audio"), "clip.wav")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTranscription))
	assert.Contains(t, err.Error(), "500")
}

func TestClient_Synthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/audio/speech", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), `"model":"tts-1"`)
		assert.Contains(t, string(body), `"voice":"alloy"`)
		assert.Contains(t, string(body), `"response_format":"mp3"`)

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3-bytes"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", TTSModel: "tts-1"}, testLogger())

	audio, err := client.Synthesize(context.Background(), "Apollo Hospital is in network.")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), audio)
}

func TestClient_Synthesize_EmptyText(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused", APIKey: "test-key"}, testLogger())

	_, err := client.Synthesize(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSynthesis))
}

func TestClient_Synthesize_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "test-key"}, testLogger())

	_, err := client.Synthesize(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSynthesis))
}
