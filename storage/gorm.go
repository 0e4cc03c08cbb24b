package storage

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/clog"
	"github.com/ruzzblane-lang/K-12-Student-Information-System-sub002/xerrors"
)

// attemptModel provider_attempts 表
type attemptModel struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement"`
	OrchestrationID string    `gorm:"size:64;not null;index:idx_attempt_orch,priority:1"`
	AttemptNumber   int       `gorm:"not null;index:idx_attempt_orch,priority:2"`
	Provider        string    `gorm:"size:64;not null;index"`
	Tries           int       `gorm:"not null"`
	StartedAt       time.Time `gorm:"not null"`
	DurationMs      int64     `gorm:"not null"`
	Outcome         string    `gorm:"size:32;not null"`
	ErrorMessage    string    `gorm:"size:1024"`
}

func (attemptModel) TableName() string { return "provider_attempts" }

// orchestrationModel orchestration_logs 表
type orchestrationModel struct {
	ID                    uint64    `gorm:"primaryKey;autoIncrement"`
	OrchestrationID       string    `gorm:"size:64;not null;uniqueIndex"`
	CorrelationID         string    `gorm:"size:64;index"`
	TenantID              string    `gorm:"size:64;index"`
	Kind                  string    `gorm:"size:16;not null"`
	State                 string    `gorm:"size:32;not null"`
	Success               bool      `gorm:"not null"`
	Provider              string    `gorm:"size:64"`
	ProviderTransactionID string    `gorm:"size:128"`
	ErrorKind             string    `gorm:"size:32"`
	ErrorMessage          string    `gorm:"size:1024"`
	Amount                float64   `gorm:"not null"`
	Currency              string    `gorm:"size:8"`
	ProcessingTimeMs      int64     `gorm:"not null"`
	CreatedAt             time.Time `gorm:"not null"`
}

func (orchestrationModel) TableName() string { return "orchestration_logs" }

// gormStore 基于 GORM 的 Store 实现
type gormStore struct {
	db     *gorm.DB
	logger clog.Logger
}

// openGorm 按驱动建立连接并完成插件注册与迁移
func openGorm(ctx context.Context, cfg *Config, logger clog.Logger) (*gormStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.SQLite.Path)
	case "mysql":
		if err := cfg.MySQL.validate(); err != nil {
			return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "storage: %v", err)
		}
		dialector = mysql.Open(cfg.MySQL.dsn())
	default:
		return nil, xerrors.Wrapf(ErrUnsupportedDriver, "%q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(logger, cfg.SlowThreshold, cfg.LogSQL),
		TranslateError: true,
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "storage: open %s", cfg.Driver)
	}
	return newGormStore(ctx, db, cfg, logger)
}

func newGormStore(ctx context.Context, db *gorm.DB, cfg *Config, logger clog.Logger) (*gormStore, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, xerrors.Wrap(err, "storage: get sql.DB")
	}
	if cfg.Driver == "mysql" {
		sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, xerrors.Wrapf(xerrors.ErrUnavailable, "storage: ping %s: %v", cfg.Driver, err)
	}

	if cfg.Trace {
		if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.Driver))); err != nil {
			return nil, xerrors.Wrap(err, "storage: register otelgorm")
		}
	}

	if cfg.AutoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&attemptModel{}, &orchestrationModel{}); err != nil {
			return nil, xerrors.Wrap(err, "storage: auto migrate")
		}
	}

	logger.Info("storage connected", clog.String("driver", cfg.Driver))
	return &gormStore{db: db, logger: logger}, nil
}

func (s *gormStore) AppendAttempt(ctx context.Context, rec AttemptRecord) error {
	m := attemptModel{
		OrchestrationID: rec.OrchestrationID,
		AttemptNumber:   rec.AttemptNumber,
		Provider:        rec.Provider,
		Tries:           rec.Tries,
		StartedAt:       rec.StartedAt.UTC(),
		DurationMs:      rec.DurationMs,
		Outcome:         string(rec.Outcome),
		ErrorMessage:    truncate(rec.ErrorMessage, 1024),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return xerrors.Wrap(err, "storage: append attempt")
	}
	return nil
}

func (s *gormStore) AppendOrchestrationLog(ctx context.Context, log OrchestrationLog) error {
	m := orchestrationModel{
		OrchestrationID:       log.OrchestrationID,
		CorrelationID:         log.CorrelationID,
		TenantID:              log.TenantID,
		Kind:                  string(log.Kind),
		State:                 log.State,
		Success:               log.Success,
		Provider:              log.Provider,
		ProviderTransactionID: log.ProviderTransactionID,
		ErrorKind:             log.ErrorKind,
		ErrorMessage:          truncate(log.ErrorMessage, 1024),
		Amount:                log.Amount,
		Currency:              log.Currency,
		ProcessingTimeMs:      log.ProcessingTimeMs,
		CreatedAt:             log.CreatedAt.UTC(),
	}
	err := s.db.WithContext(ctx).Create(&m).Error
	if xerrors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	if err != nil {
		return xerrors.Wrap(err, "storage: append orchestration log")
	}
	return nil
}

func (s *gormStore) Attempts(ctx context.Context, orchestrationID string) ([]AttemptRecord, error) {
	var rows []attemptModel
	err := s.db.WithContext(ctx).
		Where("orchestration_id = ?", orchestrationID).
		Order("attempt_number ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, xerrors.Wrap(err, "storage: list attempts")
	}

	out := make([]AttemptRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, AttemptRecord{
			OrchestrationID: m.OrchestrationID,
			Provider:        m.Provider,
			AttemptNumber:   m.AttemptNumber,
			Tries:           m.Tries,
			StartedAt:       m.StartedAt,
			DurationMs:      m.DurationMs,
			Outcome:         Outcome(m.Outcome),
			ErrorMessage:    m.ErrorMessage,
		})
	}
	return out, nil
}

func (s *gormStore) Orchestration(ctx context.Context, orchestrationID string) (*OrchestrationLog, error) {
	var m orchestrationModel
	err := s.db.WithContext(ctx).Where("orchestration_id = ?", orchestrationID).Take(&m).Error
	if xerrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, xerrors.Wrap(err, "storage: get orchestration")
	}
	return &OrchestrationLog{
		OrchestrationID:       m.OrchestrationID,
		CorrelationID:         m.CorrelationID,
		TenantID:              m.TenantID,
		Kind:                  Kind(m.Kind),
		State:                 m.State,
		Success:               m.Success,
		Provider:              m.Provider,
		ProviderTransactionID: m.ProviderTransactionID,
		ErrorKind:             m.ErrorKind,
		ErrorMessage:          m.ErrorMessage,
		Amount:                m.Amount,
		Currency:              m.Currency,
		ProcessingTimeMs:      m.ProcessingTimeMs,
		CreatedAt:             m.CreatedAt,
	}, nil
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
