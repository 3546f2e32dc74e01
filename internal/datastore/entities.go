// entities.go implements CRUD for the hierarchy entities. The relational
// store is the source of truth for existence and ids; the filesystem tree
// is a derived projection maintained by the hierarchy package.
package datastore

import (
	"gorm.io/gorm"
)

// Projects

// CreateProject inserts a new project and assigns its id.
func (ds *DataStore) CreateProject(p *Project) error {
	return translateError(ds.DB.Create(p).Error, "create_project", "project", p.Name)
}

// GetProject retrieves a project by id.
func (ds *DataStore) GetProject(id uint) (*Project, error) {
	var p Project
	if err := ds.DB.First(&p, id).Error; err != nil {
		return nil, translateError(err, "get_project", "project", id)
	}
	return &p, nil
}

// GetProjectByName retrieves a project by its unique name.
func (ds *DataStore) GetProjectByName(name string) (*Project, error) {
	var p Project
	if err := ds.DB.Where("name = ?", name).First(&p).Error; err != nil {
		return nil, translateError(err, "get_project_by_name", "project", name)
	}
	return &p, nil
}

// ListProjects returns all projects ordered by name.
func (ds *DataStore) ListProjects() ([]Project, error) {
	var projects []Project
	if err := ds.DB.Order("name ASC").Find(&projects).Error; err != nil {
		return nil, translateError(err, "list_projects", "project", nil)
	}
	return projects, nil
}

// RenameProject updates the project name. Uniqueness breaches surface as
// conflict errors.
func (ds *DataStore) RenameProject(id uint, newName string) error {
	return ds.renameEntity(&Project{}, "project", id, newName)
}

// UpdateProjectMetadata replaces the free-form metadata map.
func (ds *DataStore) UpdateProjectMetadata(id uint, metadata JSONMap) error {
	res := ds.DB.Model(&Project{}).Where("id = ?", id).Update("metadata", metadata)
	if res.Error != nil {
		return translateError(res.Error, "update_project_metadata", "project", id)
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "update_project_metadata", "project", id)
	}
	return nil
}

// DeleteProject removes a project; scenes, angles, takes, frames and
// detector results cascade at the database level.
func (ds *DataStore) DeleteProject(id uint) error {
	return ds.deleteEntity(&Project{}, "project", id)
}

// Scenes

func (ds *DataStore) CreateScene(s *Scene) error {
	return translateError(ds.DB.Create(s).Error, "create_scene", "scene", s.Name)
}

func (ds *DataStore) GetScene(id uint) (*Scene, error) {
	var s Scene
	if err := ds.DB.First(&s, id).Error; err != nil {
		return nil, translateError(err, "get_scene", "scene", id)
	}
	return &s, nil
}

func (ds *DataStore) ListScenes(projectID uint) ([]Scene, error) {
	var scenes []Scene
	if err := ds.DB.Where("project_id = ?", projectID).Order("name ASC").Find(&scenes).Error; err != nil {
		return nil, translateError(err, "list_scenes", "scene", projectID)
	}
	return scenes, nil
}

func (ds *DataStore) RenameScene(id uint, newName string) error {
	return ds.renameEntity(&Scene{}, "scene", id, newName)
}

// UpdateSceneDetectorConfig replaces the per-scene detector configuration.
func (ds *DataStore) UpdateSceneDetectorConfig(id uint, config JSONMap) error {
	res := ds.DB.Model(&Scene{}).Where("id = ?", id).Update("detector_config", config)
	if res.Error != nil {
		return translateError(res.Error, "update_scene_detector_config", "scene", id)
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "update_scene_detector_config", "scene", id)
	}
	return nil
}

func (ds *DataStore) DeleteScene(id uint) error {
	return ds.deleteEntity(&Scene{}, "scene", id)
}

// Angles

func (ds *DataStore) CreateAngle(a *Angle) error {
	return translateError(ds.DB.Create(a).Error, "create_angle", "angle", a.Name)
}

func (ds *DataStore) GetAngle(id uint) (*Angle, error) {
	var a Angle
	if err := ds.DB.First(&a, id).Error; err != nil {
		return nil, translateError(err, "get_angle", "angle", id)
	}
	return &a, nil
}

func (ds *DataStore) ListAngles(sceneID uint) ([]Angle, error) {
	var angles []Angle
	if err := ds.DB.Where("scene_id = ?", sceneID).Order("name ASC").Find(&angles).Error; err != nil {
		return nil, translateError(err, "list_angles", "angle", sceneID)
	}
	return angles, nil
}

func (ds *DataStore) RenameAngle(id uint, newName string) error {
	return ds.renameEntity(&Angle{}, "angle", id, newName)
}

// SetReferenceTake points an angle at one of its own takes, or clears the
// pointer when takeID is nil. The take must belong to the angle.
func (ds *DataStore) SetReferenceTake(angleID uint, takeID *uint) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if takeID != nil {
			var take Take
			if err := tx.First(&take, *takeID).Error; err != nil {
				return translateError(err, "set_reference_take", "take", *takeID)
			}
			if take.AngleID != angleID {
				return translateError(gorm.ErrRecordNotFound, "set_reference_take", "take", *takeID)
			}
		}
		res := tx.Model(&Angle{}).Where("id = ?", angleID).Update("reference_take_id", takeID)
		if res.Error != nil {
			return translateError(res.Error, "set_reference_take", "angle", angleID)
		}
		if res.RowsAffected == 0 {
			return translateError(gorm.ErrRecordNotFound, "set_reference_take", "angle", angleID)
		}
		return nil
	})
}

func (ds *DataStore) DeleteAngle(id uint) error {
	return ds.deleteEntity(&Angle{}, "angle", id)
}

// Takes

func (ds *DataStore) CreateTake(t *Take) error {
	return translateError(ds.DB.Create(t).Error, "create_take", "take", t.Name)
}

func (ds *DataStore) GetTake(id uint) (*Take, error) {
	var t Take
	if err := ds.DB.First(&t, id).Error; err != nil {
		return nil, translateError(err, "get_take", "take", id)
	}
	return &t, nil
}

func (ds *DataStore) ListTakes(angleID uint) ([]Take, error) {
	var takes []Take
	if err := ds.DB.Where("angle_id = ?", angleID).Order("name ASC").Find(&takes).Error; err != nil {
		return nil, translateError(err, "list_takes", "take", angleID)
	}
	return takes, nil
}

func (ds *DataStore) RenameTake(id uint, newName string) error {
	return ds.renameEntity(&Take{}, "take", id, newName)
}

// UpdateTakeNotes replaces the free-text notes for a take.
func (ds *DataStore) UpdateTakeNotes(id uint, notes string) error {
	res := ds.DB.Model(&Take{}).Where("id = ?", id).Update("notes", notes)
	if res.Error != nil {
		return translateError(res.Error, "update_take_notes", "take", id)
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "update_take_notes", "take", id)
	}
	return nil
}

// DeleteTake removes a take; its frames and detector results cascade, and
// any angle holding it as reference take has the pointer cleared inside
// the same transaction (the delete trigger covers out-of-API deletes).
func (ds *DataStore) DeleteTake(id uint) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Angle{}).
			Where("reference_take_id = ?", id).
			Update("reference_take_id", nil).Error; err != nil {
			return translateError(err, "delete_take", "take", id)
		}
		res := tx.Delete(&Take{}, id)
		if res.Error != nil {
			return translateError(res.Error, "delete_take", "take", id)
		}
		if res.RowsAffected == 0 {
			return translateError(gorm.ErrRecordNotFound, "delete_take", "take", id)
		}
		return nil
	})
}

// shared helpers

func (ds *DataStore) renameEntity(model any, kind string, id uint, newName string) error {
	res := ds.DB.Model(model).Where("id = ?", id).Update("name", newName)
	if res.Error != nil {
		return translateError(res.Error, "rename_"+kind, kind, id)
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "rename_"+kind, kind, id)
	}
	return nil
}

func (ds *DataStore) deleteEntity(model any, kind string, id uint) error {
	res := ds.DB.Delete(model, id)
	if res.Error != nil {
		return translateError(res.Error, "delete_"+kind, kind, id)
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "delete_"+kind, kind, id)
	}
	return nil
}
