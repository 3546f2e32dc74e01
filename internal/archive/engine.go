// Package archive exposes the storage engine consumed by the API layer:
// create/get/rename/delete per entity level, frame asset storage, and
// on-demand maintenance. The engine is an explicitly constructed,
// explicitly owned handle; callers inject it at startup and close it on
// shutdown.
package archive

import (
	"image"
	"log/slog"
	"time"

	"github.com/camf-project/camf-go/internal/conf"
	"github.com/camf-project/camf-go/internal/datastore"
	"github.com/camf-project/camf-go/internal/errors"
	"github.com/camf-project/camf-go/internal/framestore"
	"github.com/camf-project/camf-go/internal/hierarchy"
	"github.com/camf-project/camf-go/internal/logging"
	"github.com/camf-project/camf-go/internal/maintenance"
	"github.com/camf-project/camf-go/internal/observability/metrics"
	"github.com/camf-project/camf-go/internal/safeops"
)

// Engine is the storage engine handle. The metadata store is the source
// of truth for existence and ids; the filesystem tree is a best-effort
// projection, so filesystem failures on the mutation paths degrade to
// logged warnings rather than failing the operation.
type Engine struct {
	settings *conf.Settings
	logger   *slog.Logger

	ds     datastore.Interface
	fs     *hierarchy.Manager
	frames *framestore.Store
	sched  *maintenance.Scheduler
}

// NewEngine opens the metadata store, prepares the hierarchy tree and
// constructs the frame store and maintenance scheduler. Inability to
// create the base storage directory aborts startup. Metrics may be nil.
func NewEngine(settings *conf.Settings, m *metrics.StorageMetrics) (*Engine, error) {
	e := &Engine{
		settings: settings,
		logger:   logging.ForService("archive"),
	}

	policy := safeops.RetryPolicy{
		MaxAttempts: settings.Retry.MaxAttempts,
		Delay:       settings.Retry.Delay,
	}

	baseDir := conf.GetBasePath(settings.Storage.BaseDir)
	fs, err := hierarchy.NewManager(baseDir, policy)
	if err != nil {
		return nil, errors.New(err).
			Component("archive").
			Category(errors.CategoryFileIO).
			Context("base_dir", baseDir).
			Build()
	}
	e.fs = fs

	e.ds = datastore.New(settings, m)
	if err := e.ds.Open(); err != nil {
		return nil, err
	}

	e.frames = framestore.NewStore(e, settings.Storage.IndexFlushEvery, policy, m)

	intervals := maintenance.Intervals{
		Compact:           settings.Maintenance.CompactInterval,
		RefreshStatistics: settings.Maintenance.AnalyzeInterval,
		OrphanSweep:       settings.Maintenance.OrphanSweepInterval,
	}
	e.sched = maintenance.NewScheduler(e.ds, intervals, m)

	return e, nil
}

// Start launches the background maintenance loop.
func (e *Engine) Start() {
	e.sched.Start()
}

// Close performs an ordered shutdown: scheduler first, then pending frame
// index flushes, then the database.
func (e *Engine) Close() error {
	e.sched.Stop(10 * time.Second)
	e.frames.FlushAll()
	return e.ds.Close()
}

// Metadata exposes the metadata store for read paths the facade does not
// wrap (detector results, continuity groups, bulk ingest).
func (e *Engine) Metadata() datastore.Interface {
	return e.ds
}

// Projects

// CreateProject creates the relational record first, then the matching
// named directory.
func (e *Engine) CreateProject(name string, metadata datastore.JSONMap) (*datastore.Project, error) {
	p := &datastore.Project{Name: name, Metadata: metadata}
	if err := e.ds.CreateProject(p); err != nil {
		return nil, err
	}
	if _, ok := e.fs.CreateDir(e.fs.BaseDir(), hierarchy.EntityProject, p.ID, name); !ok {
		e.logger.Warn("project directory creation failed, filesystem view degraded",
			"project_id", p.ID, "name", name)
	}
	return p, nil
}

func (e *Engine) GetProject(id uint) (*datastore.Project, error) {
	return e.ds.GetProject(id)
}

// RenameProject renames the relational record, then the directory. A
// failed physical rename leaves the two views diverged; that is logged
// with both identifiers and repaired by a later successful rename.
func (e *Engine) RenameProject(id uint, newName string) error {
	old, err := e.ds.GetProject(id)
	if err != nil {
		return err
	}
	if err := e.ds.RenameProject(id, newName); err != nil {
		return err
	}
	if ok := e.fs.RenameDir(e.fs.BaseDir(), hierarchy.EntityProject, id, newName); !ok {
		e.logger.Error("project renamed in metadata store but not on disk",
			"project_id", id, "old_name", old.Name, "new_name", newName)
	}
	return nil
}

// DeleteProject removes the directory tree (best effort, with retry) and
// then, independent of the filesystem outcome, performs the relational
// cascade delete.
func (e *Engine) DeleteProject(id uint) error {
	e.dropProjectIndexes(id)
	if ok := e.fs.DeleteDir(e.fs.BaseDir(), hierarchy.EntityProject, id); !ok {
		e.logger.Warn("project directory removal failed, metadata delete proceeds", "project_id", id)
	}
	return e.ds.DeleteProject(id)
}

// Scenes

func (e *Engine) CreateScene(projectID uint, name string, frameRate float64, resolution string, detectorConfig datastore.JSONMap) (*datastore.Scene, error) {
	s := &datastore.Scene{
		ProjectID:      projectID,
		Name:           name,
		FrameRate:      frameRate,
		Resolution:     resolution,
		DetectorConfig: detectorConfig,
	}
	if err := e.ds.CreateScene(s); err != nil {
		return nil, err
	}
	if parent, ok := e.projectDir(projectID); ok {
		if _, ok := e.fs.CreateDir(parent, hierarchy.EntityScene, s.ID, name); !ok {
			e.logger.Warn("scene directory creation failed", "scene_id", s.ID, "name", name)
		}
	} else {
		e.logger.Warn("scene created without directory, project directory unresolved",
			"scene_id", s.ID, "project_id", projectID)
	}
	return s, nil
}

func (e *Engine) GetScene(id uint) (*datastore.Scene, error) {
	return e.ds.GetScene(id)
}

func (e *Engine) RenameScene(id uint, newName string) error {
	old, err := e.ds.GetScene(id)
	if err != nil {
		return err
	}
	if err := e.ds.RenameScene(id, newName); err != nil {
		return err
	}
	if parent, ok := e.projectDir(old.ProjectID); ok {
		if ok := e.fs.RenameDir(parent, hierarchy.EntityScene, id, newName); !ok {
			e.logger.Error("scene renamed in metadata store but not on disk",
				"scene_id", id, "old_name", old.Name, "new_name", newName)
		}
	} else {
		e.logger.Error("scene renamed in metadata store but not on disk, project directory unresolved",
			"scene_id", id, "old_name", old.Name, "new_name", newName)
	}
	return nil
}

func (e *Engine) DeleteScene(id uint) error {
	s, err := e.ds.GetScene(id)
	if err == nil {
		e.dropSceneIndexes(id)
		if parent, ok := e.projectDir(s.ProjectID); ok {
			if ok := e.fs.DeleteDir(parent, hierarchy.EntityScene, id); !ok {
				e.logger.Warn("scene directory removal failed, metadata delete proceeds", "scene_id", id)
			}
		}
	}
	return e.ds.DeleteScene(id)
}

// Angles

func (e *Engine) CreateAngle(sceneID uint, name string) (*datastore.Angle, error) {
	a := &datastore.Angle{SceneID: sceneID, Name: name}
	if err := e.ds.CreateAngle(a); err != nil {
		return nil, err
	}
	if parent, ok := e.sceneDir(sceneID); ok {
		if _, ok := e.fs.CreateDir(parent, hierarchy.EntityAngle, a.ID, name); !ok {
			e.logger.Warn("angle directory creation failed", "angle_id", a.ID, "name", name)
		}
	} else {
		e.logger.Warn("angle created without directory, scene directory unresolved",
			"angle_id", a.ID, "scene_id", sceneID)
	}
	return a, nil
}

func (e *Engine) GetAngle(id uint) (*datastore.Angle, error) {
	return e.ds.GetAngle(id)
}

func (e *Engine) RenameAngle(id uint, newName string) error {
	old, err := e.ds.GetAngle(id)
	if err != nil {
		return err
	}
	if err := e.ds.RenameAngle(id, newName); err != nil {
		return err
	}
	if parent, ok := e.sceneDir(old.SceneID); ok {
		if ok := e.fs.RenameDir(parent, hierarchy.EntityAngle, id, newName); !ok {
			e.logger.Error("angle renamed in metadata store but not on disk",
				"angle_id", id, "old_name", old.Name, "new_name", newName)
		}
	} else {
		e.logger.Error("angle renamed in metadata store but not on disk, scene directory unresolved",
			"angle_id", id, "old_name", old.Name, "new_name", newName)
	}
	return nil
}

// SetReferenceTake marks one of the angle's takes as its reference take,
// or clears the mark when takeID is nil.
func (e *Engine) SetReferenceTake(angleID uint, takeID *uint) error {
	return e.ds.SetReferenceTake(angleID, takeID)
}

func (e *Engine) DeleteAngle(id uint) error {
	a, err := e.ds.GetAngle(id)
	if err == nil {
		e.dropAngleIndexes(id)
		if parent, ok := e.sceneDir(a.SceneID); ok {
			if ok := e.fs.DeleteDir(parent, hierarchy.EntityAngle, id); !ok {
				e.logger.Warn("angle directory removal failed, metadata delete proceeds", "angle_id", id)
			}
		}
	}
	return e.ds.DeleteAngle(id)
}

// Takes

func (e *Engine) CreateTake(angleID uint, name string, isReference bool) (*datastore.Take, error) {
	t := &datastore.Take{AngleID: angleID, Name: name, IsReference: isReference}
	if err := e.ds.CreateTake(t); err != nil {
		return nil, err
	}
	if parent, ok := e.angleDir(angleID); ok {
		if _, ok := e.fs.CreateDir(parent, hierarchy.EntityTake, t.ID, name); !ok {
			e.logger.Warn("take directory creation failed", "take_id", t.ID, "name", name)
		}
	} else {
		e.logger.Warn("take created without directory, angle directory unresolved",
			"take_id", t.ID, "angle_id", angleID)
	}
	return t, nil
}

func (e *Engine) GetTake(id uint) (*datastore.Take, error) {
	return e.ds.GetTake(id)
}

func (e *Engine) RenameTake(id uint, newName string) error {
	old, err := e.ds.GetTake(id)
	if err != nil {
		return err
	}
	if err := e.ds.RenameTake(id, newName); err != nil {
		return err
	}
	if parent, ok := e.angleDir(old.AngleID); ok {
		if ok := e.fs.RenameDir(parent, hierarchy.EntityTake, id, newName); !ok {
			e.logger.Error("take renamed in metadata store but not on disk",
				"take_id", id, "old_name", old.Name, "new_name", newName)
		}
	} else {
		e.logger.Error("take renamed in metadata store but not on disk, angle directory unresolved",
			"take_id", id, "old_name", old.Name, "new_name", newName)
	}
	return nil
}

// DeleteTake refuses outright while an asset upload is registered against
// the take; otherwise it removes the directory subtree (best effort) and
// performs the relational cascade delete. Frame assets are deleted with
// the take; any angle referencing it has the pointer cleared.
func (e *Engine) DeleteTake(id uint) error {
	if e.fs.Uploads().Active(id) {
		return errors.Newf("take %d has an upload in progress", id).
			Component("archive").
			Category(errors.CategoryState).
			Context("take_id", id).
			Build()
	}
	t, err := e.ds.GetTake(id)
	if err == nil {
		e.frames.DropTakeIndex(id)
		if parent, ok := e.angleDir(t.AngleID); ok {
			if ok := e.fs.DeleteDir(parent, hierarchy.EntityTake, id); !ok {
				e.logger.Warn("take directory removal failed, metadata delete proceeds", "take_id", id)
			}
		}
	}
	return e.ds.DeleteTake(id)
}

// RegisterUpload marks an asset upload as in progress for a take,
// blocking deletion until released.
func (e *Engine) RegisterUpload(takeID uint) {
	e.fs.Uploads().Register(takeID)
}

// ReleaseUpload marks an asset upload as finished.
func (e *Engine) ReleaseUpload(takeID uint) {
	e.fs.Uploads().Release(takeID)
}

// Frame assets

// StoreFrame persists one captured frame for a take.
func (e *Engine) StoreFrame(takeID uint, frameNumber int, img image.Image, timestamp float64, metadata map[string]any) bool {
	return e.frames.StoreFrame(takeID, frameNumber, img, timestamp, metadata)
}

// GetFrame loads a stored frame; the boolean is false when absent.
func (e *Engine) GetFrame(takeID uint, frameNumber int) (image.Image, bool) {
	return e.frames.GetFrame(takeID, frameNumber)
}

// GetFrameCount returns the number of stored frame assets for a take.
func (e *Engine) GetFrameCount(takeID uint) int {
	return e.frames.GetFrameCount(takeID)
}

// GetTakeFrames lists the stored frame assets for a take.
func (e *Engine) GetTakeFrames(takeID uint) []framestore.FrameInfo {
	return e.frames.GetTakeFrames(takeID)
}

// FinalizeTake flushes the take's frame index at the end of a capture
// session.
func (e *Engine) FinalizeTake(takeID uint) bool {
	return e.frames.FinalizeTake(takeID)
}

// Maintenance

// RunMaintenance triggers maintenance tasks on demand.
func (e *Engine) RunMaintenance(tasks ...maintenance.Task) error {
	return e.sched.RunNow(tasks...)
}

// MaintenanceStatus reports the last run time per task.
func (e *Engine) MaintenanceStatus() map[maintenance.Task]time.Time {
	return e.sched.LastRuns()
}

// ResolveTakeDir resolves a take id to its current directory by walking
// the entity chain through the metadata store and the hierarchy tree.
// Implements framestore.TakeDirResolver.
func (e *Engine) ResolveTakeDir(takeID uint) (string, bool) {
	t, err := e.ds.GetTake(takeID)
	if err != nil {
		return "", false
	}
	parent, ok := e.angleDir(t.AngleID)
	if !ok {
		return "", false
	}
	return e.fs.FindDir(parent, hierarchy.EntityTake, takeID)
}

// directory chain resolution

func (e *Engine) projectDir(projectID uint) (string, bool) {
	return e.fs.FindDir(e.fs.BaseDir(), hierarchy.EntityProject, projectID)
}

func (e *Engine) sceneDir(sceneID uint) (string, bool) {
	s, err := e.ds.GetScene(sceneID)
	if err != nil {
		return "", false
	}
	parent, ok := e.projectDir(s.ProjectID)
	if !ok {
		return "", false
	}
	return e.fs.FindDir(parent, hierarchy.EntityScene, sceneID)
}

func (e *Engine) angleDir(angleID uint) (string, bool) {
	a, err := e.ds.GetAngle(angleID)
	if err != nil {
		return "", false
	}
	parent, ok := e.sceneDir(a.SceneID)
	if !ok {
		return "", false
	}
	return e.fs.FindDir(parent, hierarchy.EntityAngle, angleID)
}

// index bookkeeping for subtree deletes

func (e *Engine) dropProjectIndexes(projectID uint) {
	scenes, err := e.ds.ListScenes(projectID)
	if err != nil {
		return
	}
	for i := range scenes {
		e.dropSceneIndexes(scenes[i].ID)
	}
}

func (e *Engine) dropSceneIndexes(sceneID uint) {
	angles, err := e.ds.ListAngles(sceneID)
	if err != nil {
		return
	}
	for i := range angles {
		e.dropAngleIndexes(angles[i].ID)
	}
}

func (e *Engine) dropAngleIndexes(angleID uint) {
	takes, err := e.ds.ListTakes(angleID)
	if err != nil {
		return
	}
	for i := range takes {
		e.frames.DropTakeIndex(takes[i].ID)
	}
}

var _ framestore.TakeDirResolver = (*Engine)(nil)
