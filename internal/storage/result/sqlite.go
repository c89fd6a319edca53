package result

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/newthinker/fastquant/internal/backtest"
	"github.com/newthinker/fastquant/internal/core"
)

// quantStrategyModel is the quant_strategy row. Non-finite metrics are NULL.
type quantStrategyModel struct {
	Seq              uint      `gorm:"primaryKey;autoIncrement"`
	StrategyID       string    `gorm:"column:strategy_id;size:64;uniqueIndex"`
	StrategyName     string    `gorm:"column:strategy_name;size:64;index"`
	StartDate        time.Time `gorm:"column:start_date"`
	EndDate          time.Time `gorm:"column:end_date"`
	AnnualizedReturn *float64  `gorm:"column:annualized_return"`
	CumulativeReturn *float64  `gorm:"column:cumulative_return"`
	MaxDrawdown      *float64  `gorm:"column:max_drawdown"`
	Volatility       *float64  `gorm:"column:volatility"`
	SharpeRatio      *float64  `gorm:"column:sharpe_ratio"`
	TradeCount       int       `gorm:"column:trade_count"`
	CreatedAt        time.Time
}

func (quantStrategyModel) TableName() string {
	return "quant_strategy"
}

func toModel(r *backtest.Result) quantStrategyModel {
	return quantStrategyModel{
		StrategyID:       r.ID,
		StrategyName:     string(r.Strategy),
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		AnnualizedReturn: backtest.NullableFloat(r.AnnualizedReturn),
		CumulativeReturn: backtest.NullableFloat(r.CumulativeReturn),
		MaxDrawdown:      backtest.NullableFloat(r.MaxDrawdown),
		Volatility:       backtest.NullableFloat(r.Volatility),
		SharpeRatio:      backtest.NullableFloat(r.SharpeRatio),
		TradeCount:       r.TradeCount,
	}
}

func (m quantStrategyModel) toResult() *backtest.Result {
	return &backtest.Result{
		ID:               m.StrategyID,
		Strategy:         core.StrategyName(m.StrategyName),
		StartDate:        m.StartDate,
		EndDate:          m.EndDate,
		AnnualizedReturn: backtest.FloatOrNaN(m.AnnualizedReturn),
		CumulativeReturn: backtest.FloatOrNaN(m.CumulativeReturn),
		MaxDrawdown:      backtest.FloatOrNaN(m.MaxDrawdown),
		Volatility:       backtest.FloatOrNaN(m.Volatility),
		SharpeRatio:      backtest.FloatOrNaN(m.SharpeRatio),
		TradeCount:       m.TradeCount,
	}
}

// SQLiteStore persists results to the quant_strategy table.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("database path cannot be empty"))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return NewSQLiteStoreFromDB(db)
}

// NewSQLiteStoreFromDB migrates the schema on an open connection.
func NewSQLiteStoreFromDB(db *gorm.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&quantStrategyModel{}); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("migrating: %w", err))
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SQLiteStore{db: db}, nil
}

// Save upserts a result by strategy id.
func (s *SQLiteStore) Save(ctx context.Context, r *backtest.Result) error {
	if r == nil || r.ID == "" {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("result without id"))
	}
	row := toModel(r)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "strategy_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"strategy_name", "start_date", "end_date",
			"annualized_return", "cumulative_return", "max_drawdown",
			"volatility", "sharpe_ratio", "trade_count",
		}),
	}).Create(&row).Error
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// GetByID retrieves a result by strategy id.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*backtest.Result, error) {
	var row quantStrategyModel
	err := s.db.WithContext(ctx).Where("strategy_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.WrapError(core.ErrResultNotFound, fmt.Errorf("%q", id))
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return row.toResult(), nil
}

// List returns results matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*backtest.Result, error) {
	q := s.filtered(ctx, filter).Order("seq DESC")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []quantStrategyModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	out := make([]*backtest.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toResult())
	}
	return out, nil
}

// Count returns the number of matching results.
func (s *SQLiteStore) Count(ctx context.Context, filter ListFilter) (int, error) {
	var n int64
	if err := s.filtered(ctx, filter).Count(&n).Error; err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, err)
	}
	return int(n), nil
}

func (s *SQLiteStore) filtered(ctx context.Context, filter ListFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&quantStrategyModel{})
	if filter.Strategy != "" {
		q = q.Where("strategy_name = ?", string(filter.Strategy))
	}
	if !filter.From.IsZero() {
		q = q.Where("start_date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("end_date <= ?", filter.To)
	}
	return q
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
