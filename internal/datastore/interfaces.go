// interfaces.go defines the interface for the metadata store operations.
package datastore

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/camf-project/camf-go/internal/conf"
	"github.com/camf-project/camf-go/internal/logging"
	"github.com/camf-project/camf-go/internal/observability/metrics"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Interface abstracts the underlying database implementation and defines
// the metadata store operations. Absence is reported via errors.ErrNotFound,
// integrity violations via the conflict category.
type Interface interface {
	Open() error
	Close() error

	// Projects
	CreateProject(p *Project) error
	GetProject(id uint) (*Project, error)
	GetProjectByName(name string) (*Project, error)
	ListProjects() ([]Project, error)
	RenameProject(id uint, newName string) error
	UpdateProjectMetadata(id uint, metadata JSONMap) error
	DeleteProject(id uint) error

	// Scenes
	CreateScene(s *Scene) error
	GetScene(id uint) (*Scene, error)
	ListScenes(projectID uint) ([]Scene, error)
	RenameScene(id uint, newName string) error
	UpdateSceneDetectorConfig(id uint, config JSONMap) error
	DeleteScene(id uint) error

	// Angles
	CreateAngle(a *Angle) error
	GetAngle(id uint) (*Angle, error)
	ListAngles(sceneID uint) ([]Angle, error)
	RenameAngle(id uint, newName string) error
	SetReferenceTake(angleID uint, takeID *uint) error
	DeleteAngle(id uint) error

	// Takes
	CreateTake(t *Take) error
	GetTake(id uint) (*Take, error)
	ListTakes(angleID uint) ([]Take, error)
	RenameTake(id uint, newName string) error
	UpdateTakeNotes(id uint, notes string) error
	DeleteTake(id uint) error

	// Frame metadata
	CreateFrame(f *Frame) error
	GetFrameRecord(takeID uint, frameNumber int) (*Frame, error)
	ListFrames(takeID uint) ([]Frame, error)
	ListFrameRange(takeID uint, first, last int) ([]Frame, error)
	CountFrames(takeID uint) (int64, error)
	InsertFrameBatch(rows []map[string]any) error

	// Detector results
	InsertDetectorResultBatch(rows []map[string]any) error
	ListDetectorResults(takeID uint) ([]DetectorResult, error)
	ListContinuityGroup(groupID uint) ([]DetectorResult, error)
	MarkFalsePositive(resultID uint, reason string) error

	// Maintenance primitives
	Compact() error
	RefreshStatistics() error
	OrphanSweep() (int64, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB       *gorm.DB
	Settings *conf.Settings
	logger   *slog.Logger
	cache    *queryCache
	metrics  *metrics.StorageMetrics
}

// New creates a new metadata store instance based on the provided
// configuration. Metrics may be nil.
func New(settings *conf.Settings, m *metrics.StorageMetrics) Interface {
	cacheTTL := settings.Cache.TTL
	if cacheTTL <= 0 {
		cacheTTL = 60 * time.Second
	}
	return &SQLiteStore{
		DataStore: DataStore{
			Settings: settings,
			logger:   logging.ForService("datastore"),
			cache:    newQueryCache(cacheTTL),
			metrics:  m,
		},
	}
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      level,
			Colorful:      false,
		},
	)
}
