// model.go defines the relational data model for the production archive:
// Project -> Scene -> Angle -> Take -> Frame / DetectorResult.
package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// JSONMap is a free-form metadata map stored as a JSON text column.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", value)
	}
}

// Copy creates a deep copy of the map.
func (m JSONMap) Copy() JSONMap {
	if m == nil {
		return nil
	}
	out := make(JSONMap, len(m))
	maps.Copy(out, m)
	return out
}

// BoundingBox is one detected region within a frame, in pixel coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Label  string  `json:"label,omitempty"`
}

// BoundingBoxList is stored as a JSON text column.
type BoundingBoxList []BoundingBox

// Value implements driver.Valuer.
func (l BoundingBoxList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *BoundingBoxList) Scan(value any) error {
	if value == nil {
		*l = BoundingBoxList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type %T for BoundingBoxList", value)
	}
}

// Project is the root of the archive hierarchy. Names are globally unique.
type Project struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	Metadata  JSONMap `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Scenes    []Scene `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE"`
}

// Scene belongs to one Project; name unique within the project.
type Scene struct {
	ID             uint    `gorm:"primaryKey"`
	ProjectID      uint    `gorm:"not null;uniqueIndex:idx_scenes_project_name"`
	Name           string  `gorm:"not null;uniqueIndex:idx_scenes_project_name"`
	FrameRate      float64 `gorm:"not null;check:frame_rate > 0"`
	Resolution     string
	DetectorConfig JSONMap `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Angles         []Angle `gorm:"foreignKey:SceneID;constraint:OnDelete:CASCADE"`
}

// Angle belongs to one Scene; name unique within the scene.
//
// ReferenceTakeID is a non-owning link to one of this angle's takes,
// declared as a plain nullable foreign key so a dangling id is rejected
// at the storage layer. Deleting the referenced take clears the pointer
// (SET NULL action plus the delete trigger in manage.go), it never
// cascade-deletes the angle.
type Angle struct {
	ID              uint   `gorm:"primaryKey"`
	SceneID         uint   `gorm:"not null;uniqueIndex:idx_angles_scene_name"`
	Name            string `gorm:"not null;uniqueIndex:idx_angles_scene_name"`
	ReferenceTakeID *uint  `gorm:"index"`
	ReferenceTake   *Take  `gorm:"foreignKey:ReferenceTakeID;constraint:OnDelete:SET NULL"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Takes           []Take `gorm:"foreignKey:AngleID;constraint:OnDelete:CASCADE"`
}

// Take belongs to one Angle; name unique within the angle. Notes may embed
// frame references; parsing them is the export layer's concern.
type Take struct {
	ID          uint   `gorm:"primaryKey"`
	AngleID     uint   `gorm:"not null;uniqueIndex:idx_takes_angle_name"`
	Name        string `gorm:"not null;uniqueIndex:idx_takes_angle_name"`
	IsReference bool
	StartedAt   *time.Time
	EndedAt     *time.Time
	Notes       string `gorm:"type:text"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Frames      []Frame          `gorm:"foreignKey:TakeID;constraint:OnDelete:CASCADE"`
	Results     []DetectorResult `gorm:"foreignKey:TakeID;constraint:OnDelete:CASCADE"`
}

// Frame is the metadata record for one captured frame asset.
type Frame struct {
	ID          uint    `gorm:"primaryKey"`
	TakeID      uint    `gorm:"not null;uniqueIndex:idx_frames_take_number"`
	FrameNumber int     `gorm:"not null;uniqueIndex:idx_frames_take_number"`
	Timestamp   float64 `gorm:"not null"` // seconds from take start
	Path        string
	CreatedAt   time.Time
}

// DetectorResult is one continuity finding for a frame of a take.
// Consecutive frames sharing one detected issue form a continuous error
// group tracked by ErrorGroupID and the start/end flags.
type DetectorResult struct {
	ID                  uint    `gorm:"primaryKey"`
	TakeID              uint    `gorm:"not null;index"`
	FrameID             uint    `gorm:"index"`
	Detector            string  `gorm:"not null;index"`
	Confidence          float64 `gorm:"check:confidence >= -1.0 AND confidence <= 1.0"`
	BoundingBoxes       BoundingBoxList `gorm:"type:text"`
	ErrorGroupID        *uint           `gorm:"index"`
	IsGroupStart        bool
	IsGroupEnd          bool
	FalsePositive       bool
	FalsePositiveReason string
	CreatedAt           time.Time
}

// Copy creates a deep copy of the DetectorResult struct.
func (r DetectorResult) Copy() DetectorResult {
	out := r
	if r.BoundingBoxes != nil {
		out.BoundingBoxes = make(BoundingBoxList, len(r.BoundingBoxes))
		copy(out.BoundingBoxes, r.BoundingBoxes)
	}
	if r.ErrorGroupID != nil {
		groupID := *r.ErrorGroupID
		out.ErrorGroupID = &groupID
	}
	return out
}
