package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Sentinel errors for the two speech operations.
var (
	ErrTranscription = errors.New("transcription service failure")
	ErrSynthesis     = errors.New("synthesis service failure")
)

// Client talks to an OpenAI-compatible speech API for speech-to-text and
// text-to-speech.
type Client struct {
	baseURL    string
	apiKey     string
	sttModel   string
	ttsModel   string
	voice      string
	httpClient *http.Client
	logger     *logrus.Logger
}

type Config struct {
	BaseURL  string
	APIKey   string
	STTModel string
	TTSModel string
	Voice    string
	Timeout  time.Duration
}

func NewClient(cfg Config, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	voice := cfg.Voice
	if voice == "" {
		voice = "alloy"
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		sttModel:   cfg.STTModel,
		ttsModel:   cfg.TTSModel,
		voice:      voice,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Transcribe uploads audio bytes and returns the transcript text. filename
// carries the container format hint ("clip.wav", "clip.webm").
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio payload", ErrTranscription)
	}
	if filename == "" {
		filename = "audio.wav"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if err := writer.WriteField("model", c.sttModel); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.logger.WithFields(logrus.Fields{
		"audio_size": len(audio),
		"filename":   filename,
	}).Debug("Transcribing audio")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d: %s", ErrTranscription, resp.StatusCode, string(body))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	return result.Text, nil
}

// Synthesize converts reply text to audio bytes (mp3).
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrSynthesis)
	}

	payload := map[string]interface{}{
		"model":           c.ttsModel,
		"input":           text,
		"voice":           c.voice,
		"response_format": "mp3",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/audio/speech", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithField("text_len", len(text)).Debug("Synthesizing speech")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSynthesis, resp.StatusCode, string(body))
	}
	return body, nil
}
