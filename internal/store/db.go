package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Analysis{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveAnalysis creates an analysis row.
func (d *Database) SaveAnalysis(a *Analysis) error {
	if a == nil {
		return errors.New("analysis is nil")
	}
	if strings.TrimSpace(a.UUID) == "" {
		return errors.New("analysis uuid required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(a).Error
}

// GetAnalysis fetches a single analysis by uuid.
func (d *Database) GetAnalysis(uuid string) (*Analysis, error) {
	var out Analysis
	err := d.gorm.Where("uuid = ?", strings.TrimSpace(uuid)).First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAnalyses returns the newest analyses, paginated.
func (d *Database) ListAnalyses(limit, offset int) ([]Analysis, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := d.gorm.Model(&Analysis{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []Analysis
	err := d.gorm.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// DeleteAnalysis removes an analysis by uuid.
func (d *Database) DeleteAnalysis(uuid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := d.gorm.Where("uuid = ?", strings.TrimSpace(uuid)).Delete(&Analysis{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByRiskLevel aggregates stored analyses per risk level.
func (d *Database) CountByRiskLevel() (map[string]int64, error) {
	type row struct {
		RiskLevel string
		Count     int64
	}
	var rows []row
	err := d.gorm.Model(&Analysis{}).
		Select("risk_level, count(*) as count").
		Group("risk_level").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.RiskLevel] = r.Count
	}
	return out, nil
}
