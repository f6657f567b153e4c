package ledger

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQL stores records in the "transfers" table through gorm.
type SQL struct {
	db *gorm.DB
}

// OpenSQL connects with the given driver ("sqlite" or "mysql") and migrates
// the transfers table.
func OpenSQL(driver, dsn string) (*SQL, error) {
	var dialector gorm.Dialector
	switch driver {
	case KindSQLite:
		dialector = sqlite.Open(dsn)
	case KindMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return &SQL{db: db}, nil
}

func (s *SQL) Append(ctx context.Context, rec Record) error {
	rec.ID = 0
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *SQL) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultCapacity
	}
	var out []Record
	err := s.db.WithContext(ctx).Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
