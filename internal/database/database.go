package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"bitget-pnl-tracker-go/internal/fills"
	"bitget-pnl-tracker-go/internal/models"
)

const (
	insertBatchSize = 100
	busyTimeoutMS   = 5000
)

// FillFilter narrows LoadFills. Zero values mean "no restriction".
type FillFilter struct {
	Symbol string
	// Since is a lower bound on CTime, in ms.
	Since int64
}

// NewDatabase opens the fill cache and migrates its schema.
// The tracker writes and the dashboard reads the same file, so connections
// wait on locks and file databases use WAL.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(withPragmas(dsn)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// withPragmas adds a busy timeout to dsn and, for file databases, WAL
// journaling. Options already present in dsn are kept.
func withPragmas(dsn string) string {
	var opts []string
	if !strings.Contains(dsn, "_busy_timeout=") {
		opts = append(opts, fmt.Sprintf("_busy_timeout=%d", busyTimeoutMS))
	}
	inMemory := strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
	if !inMemory && !strings.Contains(dsn, "_journal_mode=") {
		opts = append(opts, "_journal_mode=WAL")
	}
	if len(opts) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(opts, "&")
}

// AutoMigrate creates or updates the tables used by the tracker.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.FillRecord{}, &models.RefreshRun{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// SaveFills inserts fills that are not cached yet and returns how many rows
// were added. Fills already present (same trade id) are left untouched.
func SaveFills(db *gorm.DB, fs []fills.Fill) (int64, error) {
	if len(fs) == 0 {
		return 0, nil
	}
	records := make([]models.FillRecord, len(fs))
	for i, f := range fs {
		records[i] = models.NewFillRecord(f)
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		DoNothing: true,
	}).CreateInBatches(&records, insertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to save fills: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// LoadFills returns cached fills in chronological order.
func LoadFills(db *gorm.DB, filter FillFilter) ([]fills.Fill, error) {
	q := db.Model(&models.FillRecord{})
	if filter.Symbol != "" {
		q = q.Where("symbol = ?", filter.Symbol)
	}
	if filter.Since > 0 {
		q = q.Where("c_time >= ?", filter.Since)
	}

	var records []models.FillRecord
	if err := q.Order("c_time asc").Order("id asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load fills: %w", err)
	}

	out := make([]fills.Fill, 0, len(records))
	for _, r := range records {
		f, err := r.Fill()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// SaveRun stores the outcome of a refresh.
func SaveRun(db *gorm.DB, run *models.RefreshRun) error {
	if err := db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to save refresh run: %w", err)
	}
	return nil
}

// LatestRun returns the most recent refresh, or nil when none was recorded.
func LatestRun(db *gorm.DB) (*models.RefreshRun, error) {
	var run models.RefreshRun
	err := db.Order("started_at desc").First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest refresh run: %w", err)
	}
	return &run, nil
}
