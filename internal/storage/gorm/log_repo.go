package gorm

import (
	"context"
	"time"

	"homelab-agent/internal/models"
	"homelab-agent/internal/service"

	"gorm.io/gorm"
)

// DefaultQueryLimit применяется, когда limit не задан.
const DefaultQueryLimit = 100

// GormLogRepository - это реализация LogRepository с использованием GORM.
type GormLogRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormLogRepository создает новый экземпляр репозитория журнала.
func NewGormLogRepository(db *gorm.DB) (service.LogRepository, error) {
	return &GormLogRepository{db: db, now: time.Now}, nil
}

func (r *GormLogRepository) Append(ctx context.Context, record *models.LogRecord) error {
	if record.Timestamp == "" {
		record.Timestamp = models.FormatTimestamp(r.now())
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *GormLogRepository) QueryByKind(ctx context.Context, kind string, limit int) ([]models.LogRecord, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	var records []models.LogRecord
	q := r.db.WithContext(ctx).Order("id desc").Limit(limit)
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	err := q.Find(&records).Error
	return records, err
}

// SearchContent ищет точное вхождение подстроки (с учетом регистра).
func (r *GormLogRepository) SearchContent(ctx context.Context, query string, k int) ([]models.LogRecord, error) {
	if k <= 0 {
		k = 5
	}
	cond := "instr(content, ?) > 0"
	if r.db.Dialector.Name() == "postgres" {
		cond = "strpos(content, ?) > 0"
	}
	var records []models.LogRecord
	err := r.db.WithContext(ctx).
		Where(cond, query).
		Order("id desc").
		Limit(k).
		Find(&records).Error
	return records, err
}

func (r *GormLogRepository) RecentContext(ctx context.Context, k int) ([]models.ContextEntry, error) {
	if k <= 0 {
		k = 10
	}
	var records []models.LogRecord
	if err := r.db.WithContext(ctx).Order("id desc").Limit(k).Find(&records).Error; err != nil {
		return nil, err
	}
	return service.ToContextEntries(records), nil
}

func (r *GormLogRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
