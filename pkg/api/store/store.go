// Package store persists build reports and serves the dashboard's
// latest-per-partition queries.
package store

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/proverops/buildboard/pkg/config"
	"github.com/proverops/buildboard/pkg/workflow"
)

// Filter restricts latest-build queries. Zero values mean "no filter".
type Filter struct {
	// IsabelleVersion matches isabelle_version exactly, including the
	// unknown_version sentinel.
	IsabelleVersion string

	// Owner matches reponames beginning with "<owner>/".
	Owner string
}

// Store provides persistence for build reports.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	// InsertBuild derives tool versions from the build's config and
	// appends a new row.
	InsertBuild(ctx context.Context, build *Build) error

	// ListLatest returns the most recent build for each distinct
	// (reponame, isabelle_version) pair matching the filter, ordered by
	// datetime descending.
	ListLatest(ctx context.Context, f Filter) ([]Build, error)

	// ListHistory returns every build for a repository, ordered by
	// datetime descending.
	ListHistory(ctx context.Context, reponame string) ([]Build, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a new Store backed by the configured database driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "store"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(&Build{}); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).Info("Database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// InsertBuild enriches the build with versions derived from its config
// and appends it. Derivation is best-effort: an unparseable config
// yields sentinel versions, never an insert failure.
func (s *store) InsertBuild(ctx context.Context, build *Build) error {
	v := workflow.ExtractVersions(build.Config)
	build.BuilderVersion = v.Builder
	build.IsabelleVersion = v.Isabelle

	if err := s.db.WithContext(ctx).Create(build).Error; err != nil {
		return fmt.Errorf("inserting build: %w", err)
	}

	return nil
}

// latestRowCondition selects, within each (reponame, isabelle_version)
// partition, the single row with the maximum datetime; ties resolve to
// the highest id. Datetime is compared lexically, matching the
// caller-supplied ISO-8601 ordering.
const latestRowCondition = `id = (
	SELECT b.id FROM builds b
	WHERE b.reponame = builds.reponame
	  AND b.isabelle_version = builds.isabelle_version
	ORDER BY b.datetime DESC, b.id DESC
	LIMIT 1
)`

func (s *store) ListLatest(
	ctx context.Context, f Filter,
) ([]Build, error) {
	q := s.db.WithContext(ctx).
		Model(&Build{}).
		Where(latestRowCondition)

	if f.IsabelleVersion != "" {
		q = q.Where("isabelle_version = ?", f.IsabelleVersion)
	}

	if f.Owner != "" {
		q = q.Where("reponame LIKE ?", f.Owner+"/%")
	}

	builds := make([]Build, 0)
	if err := q.
		Order("datetime DESC, reponame ASC").
		Find(&builds).Error; err != nil {
		return nil, fmt.Errorf("listing latest builds: %w", err)
	}

	return builds, nil
}

func (s *store) ListHistory(
	ctx context.Context, reponame string,
) ([]Build, error) {
	builds := make([]Build, 0)
	if err := s.db.WithContext(ctx).
		Where("reponame = ?", reponame).
		Order("datetime DESC, id DESC").
		Find(&builds).Error; err != nil {
		return nil, fmt.Errorf("listing build history: %w", err)
	}

	return builds, nil
}
