// Package storage persists symbols, orders, positions, and decision logs
// to SQLite. The in-memory engine is authoritative; this layer is the
// durable mirror read back for history queries.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"market_pulse/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage wraps the SQLite database handle
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the SQLite database at path and migrates
// the schema.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		path = filepath.Join("data", "pulse.db")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite driver
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&domain.Symbol{},
		&domain.Order{},
		&domain.Position{},
		&domain.DecisionLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// SaveSymbol upserts one symbol row.
func (s *Storage) SaveSymbol(symbol *domain.Symbol) error {
	return s.db.Save(symbol).Error
}

// SaveOrder appends one immutable order row.
func (s *Storage) SaveOrder(order *domain.Order) error {
	return s.db.Create(order).Error
}

// SavePosition upserts the single position row for a symbol.
func (s *Storage) SavePosition(position *domain.Position) error {
	return s.db.Save(position).Error
}

// SaveDecision appends one decision-log row.
func (s *Storage) SaveDecision(log *domain.DecisionLog) error {
	return s.db.Create(log).Error
}

// Symbols returns all persisted symbols ordered by name.
func (s *Storage) Symbols() ([]domain.Symbol, error) {
	var symbols []domain.Symbol
	err := s.db.Order("name").Find(&symbols).Error
	return symbols, err
}

// RecentOrders returns the newest limit orders, newest first.
func (s *Storage) RecentOrders(limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := s.db.Order("id desc").Limit(limit).Find(&orders).Error
	return orders, err
}

// Positions returns all persisted positions ordered by symbol.
func (s *Storage) Positions() ([]domain.Position, error) {
	var positions []domain.Position
	err := s.db.Order("symbol_id").Find(&positions).Error
	return positions, err
}

// RecentDecisions returns the newest limit decision-log rows, newest first.
func (s *Storage) RecentDecisions(limit int) ([]domain.DecisionLog, error) {
	var logs []domain.DecisionLog
	err := s.db.Order("id desc").Limit(limit).Find(&logs).Error
	return logs, err
}
