package models

// GORM models for the analytics layer.

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QueryLog records one answered utterance for analytics.
type QueryLog struct {
	BaseModel
	Utterance      string    `json:"utterance" gorm:"not null"`
	Outcome        string    `json:"outcome" gorm:"not null"`
	Reason         string    `json:"reason"`
	ResultsCount   int       `json:"results_count" gorm:"default:0"`
	UserSession    string    `json:"user_session"`
	AskedAt        time.Time `json:"asked_at" gorm:"default:NOW()"`
	ResponseTimeMs int       `json:"response_time_ms"`
	UserAgent      string    `json:"user_agent"`
	IPAddress      string    `json:"ip_address" gorm:"type:inet"`
	Voice          bool      `json:"voice" gorm:"default:false"`

	// Associations
	Feedback []UserFeedback `json:"feedback" gorm:"foreignKey:QueryID"`
}

// UserFeedback represents user feedback on an answer.
type UserFeedback struct {
	BaseModel
	QueryID      uint   `json:"query_id" gorm:"not null"`
	FeedbackType string `json:"feedback_type" gorm:"not null;check:feedback_type IN ('helpful','not_helpful','partially_helpful')"`
	FeedbackText string `json:"feedback_text"`
	UserSession  string `json:"user_session"`

	// Associations
	Query QueryLog `json:"query" gorm:"foreignKey:QueryID"`
}

// PopularQuery represents frequently asked utterances.
type PopularQuery struct {
	BaseModel
	QueryText         string    `json:"query_text" gorm:"unique;not null"`
	SearchCount       int       `json:"search_count" gorm:"default:1"`
	AvgResultsCount   float64   `json:"avg_results_count" gorm:"type:decimal(5,2);default:0"`
	AvgResponseTimeMs int       `json:"avg_response_time_ms" gorm:"default:0"`
	LastSearched      time.Time `json:"last_searched" gorm:"default:NOW()"`
}

// SystemHealth represents service health monitoring rows.
type SystemHealth struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ServiceName    string    `json:"service_name" gorm:"not null"`
	Status         string    `json:"status" gorm:"not null;check:status IN ('healthy','degraded','unhealthy')"`
	ResponseTimeMs int       `json:"response_time_ms"`
	ErrorMessage   string    `json:"error_message"`
	CheckedAt      time.Time `json:"checked_at" gorm:"default:NOW()"`
}

// Repository interfaces
type QueryLogRepository interface {
	Create(entry *QueryLog) error
	GetByID(id uint) (*QueryLog, error)
	GetBySession(session string) ([]QueryLog, error)
	GetRecent(limit int) ([]QueryLog, error)
}

type UserFeedbackRepository interface {
	Create(feedback *UserFeedback) error
	GetByQueryID(queryID uint) ([]UserFeedback, error)
	GetRecent(limit int) ([]UserFeedback, error)
}

type PopularQueryRepository interface {
	IncrementCount(queryText string) error
	GetTop(limit int) ([]PopularQuery, error)
	UpdateStats(queryText string, resultsCount float64, responseTime int) error
}

type SystemHealthRepository interface {
	UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error
	GetServiceHealth(serviceName string) (*SystemHealth, error)
	GetAllServicesHealth() ([]SystemHealth, error)
}

// TableName methods for custom table names
func (QueryLog) TableName() string     { return "query_logs" }
func (UserFeedback) TableName() string { return "user_feedback" }
func (PopularQuery) TableName() string { return "popular_queries" }
func (SystemHealth) TableName() string { return "system_health" }

// Model validation methods
func (q *QueryLog) Validate() error {
	if q.Utterance == "" {
		return fmt.Errorf("utterance is required")
	}
	if q.ResponseTimeMs < 0 {
		return fmt.Errorf("response time cannot be negative")
	}
	return nil
}

func (uf *UserFeedback) Validate() error {
	if uf.QueryID == 0 {
		return fmt.Errorf("query ID is required")
	}
	validTypes := map[string]bool{
		"helpful":           true,
		"not_helpful":       true,
		"partially_helpful": true,
	}
	if !validTypes[uf.FeedbackType] {
		return fmt.Errorf("invalid feedback type: %s", uf.FeedbackType)
	}
	return nil
}

// GORM hooks
func (q *QueryLog) BeforeCreate(tx *gorm.DB) error {
	return q.Validate()
}

func (uf *UserFeedback) BeforeCreate(tx *gorm.DB) error {
	return uf.Validate()
}
