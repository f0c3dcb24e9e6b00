package repository

import (
	"github.com/loophealth/voicebot/internal/models"
	"gorm.io/gorm"
)

// QueryLogRepositoryImpl implements QueryLogRepository
type QueryLogRepositoryImpl struct {
	db *gorm.DB
}

func NewQueryLogRepository(db *gorm.DB) models.QueryLogRepository {
	return &QueryLogRepositoryImpl{db: db}
}

func (r *QueryLogRepositoryImpl) Create(entry *models.QueryLog) error {
	return r.db.Create(entry).Error
}

func (r *QueryLogRepositoryImpl) GetByID(id uint) (*models.QueryLog, error) {
	var entry models.QueryLog
	err := r.db.Preload("Feedback").First(&entry, id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *QueryLogRepositoryImpl) GetBySession(session string) ([]models.QueryLog, error) {
	var entries []models.QueryLog
	err := r.db.Where("user_session = ?", session).
		Order("asked_at DESC").
		Find(&entries).Error
	return entries, err
}

func (r *QueryLogRepositoryImpl) GetRecent(limit int) ([]models.QueryLog, error) {
	var entries []models.QueryLog
	err := r.db.Order("asked_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// UserFeedbackRepositoryImpl implements UserFeedbackRepository
type UserFeedbackRepositoryImpl struct {
	db *gorm.DB
}

func NewUserFeedbackRepository(db *gorm.DB) models.UserFeedbackRepository {
	return &UserFeedbackRepositoryImpl{db: db}
}

func (r *UserFeedbackRepositoryImpl) Create(feedback *models.UserFeedback) error {
	return r.db.Create(feedback).Error
}

func (r *UserFeedbackRepositoryImpl) GetByQueryID(queryID uint) ([]models.UserFeedback, error) {
	var feedback []models.UserFeedback
	err := r.db.Where("query_id = ?", queryID).
		Find(&feedback).Error
	return feedback, err
}

func (r *UserFeedbackRepositoryImpl) GetRecent(limit int) ([]models.UserFeedback, error) {
	var feedback []models.UserFeedback
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Preload("Query").
		Find(&feedback).Error
	return feedback, err
}

// PopularQueryRepositoryImpl implements PopularQueryRepository
type PopularQueryRepositoryImpl struct {
	db *gorm.DB
}

func NewPopularQueryRepository(db *gorm.DB) models.PopularQueryRepository {
	return &PopularQueryRepositoryImpl{db: db}
}

func (r *PopularQueryRepositoryImpl) IncrementCount(queryText string) error {
	return r.db.Exec(`
		INSERT INTO popular_queries (query_text, search_count, last_searched, created_at, updated_at)
		VALUES (?, 1, NOW(), NOW(), NOW())
		ON CONFLICT (query_text)
		DO UPDATE SET
			search_count = popular_queries.search_count + 1,
			last_searched = NOW(),
			updated_at = NOW()
	`, queryText).Error
}

func (r *PopularQueryRepositoryImpl) GetTop(limit int) ([]models.PopularQuery, error) {
	var queries []models.PopularQuery
	err := r.db.Order("search_count DESC").
		Limit(limit).
		Find(&queries).Error
	return queries, err
}

func (r *PopularQueryRepositoryImpl) UpdateStats(queryText string, resultsCount float64, responseTime int) error {
	return r.db.Exec(`
		UPDATE popular_queries
		SET
			avg_results_count = (avg_results_count * (search_count - 1) + ?) / search_count,
			avg_response_time_ms = (avg_response_time_ms * (search_count - 1) + ?) / search_count,
			updated_at = NOW()
		WHERE query_text = ?
	`, resultsCount, responseTime, queryText).Error
}

// SystemHealthRepositoryImpl implements SystemHealthRepository
type SystemHealthRepositoryImpl struct {
	db *gorm.DB
}

func NewSystemHealthRepository(db *gorm.DB) models.SystemHealthRepository {
	return &SystemHealthRepositoryImpl{db: db}
}

func (r *SystemHealthRepositoryImpl) UpdateServiceHealth(serviceName, status string, responseTime int, errorMsg string) error {
	return r.db.Exec(`
		INSERT INTO system_health (service_name, status, response_time_ms, error_message, checked_at)
		VALUES (?, ?, ?, ?, NOW())
	`, serviceName, status, responseTime, errorMsg).Error
}

func (r *SystemHealthRepositoryImpl) GetServiceHealth(serviceName string) (*models.SystemHealth, error) {
	var health models.SystemHealth
	err := r.db.Where("service_name = ?", serviceName).
		Order("checked_at DESC").
		First(&health).Error
	if err != nil {
		return nil, err
	}
	return &health, nil
}

func (r *SystemHealthRepositoryImpl) GetAllServicesHealth() ([]models.SystemHealth, error) {
	var health []models.SystemHealth
	err := r.db.Raw(`
		SELECT DISTINCT ON (service_name) *
		FROM system_health
		ORDER BY service_name, checked_at DESC
	`).Scan(&health).Error
	return health, err
}

// RepositoryManager bundles all repositories
type RepositoryManager struct {
	QueryLog     models.QueryLogRepository
	UserFeedback models.UserFeedbackRepository
	PopularQuery models.PopularQueryRepository
	SystemHealth models.SystemHealthRepository
}

func NewRepositoryManager(db *gorm.DB) *RepositoryManager {
	return &RepositoryManager{
		QueryLog:     NewQueryLogRepository(db),
		UserFeedback: NewUserFeedbackRepository(db),
		PopularQuery: NewPopularQueryRepository(db),
		SystemHealth: NewSystemHealthRepository(db),
	}
}
