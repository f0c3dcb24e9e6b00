package models

import (
	"github.com/loophealth/voicebot/internal/hospital"
	"github.com/loophealth/voicebot/internal/retrieval"
)

type QueryRequest struct {
	Utterance string `json:"utterance" binding:"required"`
}

type QueryResponse struct {
	Reply        string            `json:"reply"`
	Outcome      retrieval.Kind    `json:"outcome"`
	Reason       string            `json:"reason,omitempty"`
	Hospitals    []hospital.Record `json:"hospitals,omitempty"`
	ResponseTime int               `json:"response_time_ms"`
}

type FeedbackRequest struct {
	QueryID      uint   `json:"query_id" binding:"required"`
	FeedbackType string `json:"feedback_type" binding:"required"`
	FeedbackText string `json:"feedback_text"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}
