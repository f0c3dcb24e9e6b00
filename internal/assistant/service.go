// Package assistant runs the question-answering pipeline: route the
// utterance, compose a grounded prompt, and call the hosted model.
package assistant

import (
	"context"
	"errors"

	"github.com/loophealth/voicebot/internal/hospital"
	"github.com/loophealth/voicebot/internal/retrieval"
	"github.com/sirupsen/logrus"
)

// Generator is the hosted language model call the composer depends on.
type Generator interface {
	Chat(ctx context.Context, system, user string) (string, error)
}

// Transcriber converts caller audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Synthesizer converts reply text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Reply is the assistant's answer for one utterance.
type Reply struct {
	Text      string            `json:"text"`
	Outcome   retrieval.Kind    `json:"outcome"`
	Reason    string            `json:"reason,omitempty"`
	Hospitals []hospital.Record `json:"hospitals,omitempty"`
}

// VoiceReply carries the spoken answer plus its text form. Audio is nil when
// synthesis failed and the caller should fall back to text.
type VoiceReply struct {
	Reply
	Utterance string `json:"utterance"`
	Audio     []byte `json:"-"`
}

// Service wires the router to the hosted services.
type Service struct {
	router      *retrieval.Router
	generator   Generator
	transcriber Transcriber
	synthesizer Synthesizer
	logger      *logrus.Logger
}

func NewService(router *retrieval.Router, generator Generator, transcriber Transcriber, synthesizer Synthesizer, logger *logrus.Logger) *Service {
	return &Service{
		router:      router,
		generator:   generator,
		transcriber: transcriber,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Answer runs the full text pipeline for one utterance. It never returns an
// error to the caller: model failures become a generic apology.
func (s *Service) Answer(ctx context.Context, utterance string) *Reply {
	outcome := s.router.Route(ctx, utterance)

	reply := &Reply{
		Outcome:   outcome.Kind,
		Reason:    outcome.Reason,
		Hospitals: outcome.AllRecords(),
	}

	if canned := CannedReply(outcome); canned != "" {
		reply.Text = canned
		s.logger.WithFields(logrus.Fields{
			"outcome": outcome.Kind,
			"reason":  outcome.Reason,
		}).Info("Answered with canned reply")
		return reply
	}

	text, err := s.generator.Chat(ctx, SystemPrompt, BuildPrompt(outcome, utterance))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.WithError(err).Error("Model call timed out")
		} else {
			s.logger.WithError(err).Error("Model call failed")
		}
		reply.Text = replyFailure
		return reply
	}

	reply.Text = text
	s.logger.WithFields(logrus.Fields{
		"outcome": outcome.Kind,
		"records": len(reply.Hospitals),
	}).Info("Answered with model reply")
	return reply
}

// AnswerVoice transcribes the audio, answers, and speaks the reply. A failed
// transcription yields a spoken apology; a failed synthesis degrades to a
// text-only reply.
func (s *Service) AnswerVoice(ctx context.Context, audio []byte, filename string) *VoiceReply {
	utterance, err := s.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		s.logger.WithError(err).Error("Transcription failed")
		reply := &VoiceReply{Reply: Reply{
			Text:    replyFailure,
			Outcome: retrieval.KindNeedsClarification,
		}}
		reply.Audio = s.speak(ctx, reply.Text)
		return reply
	}

	answer := s.Answer(ctx, utterance)
	reply := &VoiceReply{Reply: *answer, Utterance: utterance}
	reply.Audio = s.speak(ctx, answer.Text)
	return reply
}

func (s *Service) speak(ctx context.Context, text string) []byte {
	if s.synthesizer == nil {
		return nil
	}
	audio, err := s.synthesizer.Synthesize(ctx, text)
	if err != nil {
		s.logger.WithError(err).Warn("Synthesis failed, returning text-only reply")
		return nil
	}
	return audio
}
