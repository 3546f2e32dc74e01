// frames.go implements the frame-metadata and detector-result paths,
// including the batch-mapping insert mode used during capture ingest.
package datastore

import (
	"fmt"

	"gorm.io/gorm"
)

// insertBatchSize bounds the number of rows per INSERT statement in the
// bulk paths.
const insertBatchSize = 200

// CreateFrame inserts a single frame metadata record.
func (ds *DataStore) CreateFrame(f *Frame) error {
	return translateError(ds.DB.Create(f).Error, "create_frame", "frame", f.FrameNumber)
}

// GetFrameRecord retrieves the metadata record for one frame of a take.
func (ds *DataStore) GetFrameRecord(takeID uint, frameNumber int) (*Frame, error) {
	var f Frame
	err := ds.DB.Where("take_id = ? AND frame_number = ?", takeID, frameNumber).First(&f).Error
	if err != nil {
		return nil, translateError(err, "get_frame_record", "frame", frameNumber)
	}
	return &f, nil
}

// ListFrames returns all frame records for a take ordered by frame number.
// Results are served from the query cache when fresh; callers accept up to
// TTL of staleness and receive their own copy.
func (ds *DataStore) ListFrames(takeID uint) ([]Frame, error) {
	key := fmt.Sprintf("frames:take:%d", takeID)
	if cached, found := ds.cache.get(key); found {
		ds.recordCacheHit()
		return copyFrames(cached.([]Frame)), nil
	}
	ds.recordCacheMiss()

	var frames []Frame
	if err := ds.DB.Where("take_id = ?", takeID).Order("frame_number ASC").Find(&frames).Error; err != nil {
		return nil, translateError(err, "list_frames", "frame", takeID)
	}
	ds.cache.set(key, copyFrames(frames))
	return frames, nil
}

// ListFrameRange returns the frame records of a take whose frame numbers
// fall within [first, last], ordered by frame number. Uncached; range
// reads back the review scrubber and must not serve stale windows.
func (ds *DataStore) ListFrameRange(takeID uint, first, last int) ([]Frame, error) {
	var frames []Frame
	err := ds.DB.
		Where("take_id = ? AND frame_number BETWEEN ? AND ?", takeID, first, last).
		Order("frame_number ASC").
		Find(&frames).Error
	if err != nil {
		return nil, translateError(err, "list_frame_range", "frame", takeID)
	}
	return frames, nil
}

// CountFrames returns the number of frame records for a take, cached.
func (ds *DataStore) CountFrames(takeID uint) (int64, error) {
	key := fmt.Sprintf("frame_count:take:%d", takeID)
	if cached, found := ds.cache.get(key); found {
		ds.recordCacheHit()
		return cached.(int64), nil
	}
	ds.recordCacheMiss()

	var count int64
	if err := ds.DB.Model(&Frame{}).Where("take_id = ?", takeID).Count(&count).Error; err != nil {
		return 0, translateError(err, "count_frames", "frame", takeID)
	}
	ds.cache.set(key, count)
	return count, nil
}

// InsertFrameBatch inserts frame rows from column maps, bypassing per-row
// struct construction. The batch commits or rolls back as a whole.
func (ds *DataStore) InsertFrameBatch(rows []map[string]any) error {
	return ds.insertBatch(&Frame{}, "insert_frame_batch", "frame", rows)
}

// InsertDetectorResultBatch inserts detector result rows from column maps.
// The batch commits or rolls back as a whole.
func (ds *DataStore) InsertDetectorResultBatch(rows []map[string]any) error {
	return ds.insertBatch(&DetectorResult{}, "insert_detector_result_batch", "detector_result", rows)
}

func (ds *DataStore) insertBatch(model any, operation, kind string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(rows); start += insertBatchSize {
			end := min(start+insertBatchSize, len(rows))
			chunk := rows[start:end]
			if err := tx.Model(model).Create(chunk).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translateError(err, operation, kind, len(rows))
}

// ListDetectorResults returns all detector results for a take ordered by
// frame, served from the query cache when fresh.
func (ds *DataStore) ListDetectorResults(takeID uint) ([]DetectorResult, error) {
	key := fmt.Sprintf("detector_results:take:%d", takeID)
	if cached, found := ds.cache.get(key); found {
		ds.recordCacheHit()
		return copyResults(cached.([]DetectorResult)), nil
	}
	ds.recordCacheMiss()

	var results []DetectorResult
	if err := ds.DB.Where("take_id = ?", takeID).Order("frame_id ASC").Find(&results).Error; err != nil {
		return nil, translateError(err, "list_detector_results", "detector_result", takeID)
	}
	ds.cache.set(key, copyResults(results))
	return results, nil
}

// ListContinuityGroup returns the run of results sharing one continuous
// error group, ordered by frame.
func (ds *DataStore) ListContinuityGroup(groupID uint) ([]DetectorResult, error) {
	var results []DetectorResult
	if err := ds.DB.Where("error_group_id = ?", groupID).Order("frame_id ASC").Find(&results).Error; err != nil {
		return nil, translateError(err, "list_continuity_group", "detector_result", groupID)
	}
	return results, nil
}

// MarkFalsePositive flags a detector result as a false positive with the
// reviewer's reason.
func (ds *DataStore) MarkFalsePositive(resultID uint, reason string) error {
	res := ds.DB.Model(&DetectorResult{}).Where("id = ?", resultID).Updates(map[string]any{
		"false_positive":        true,
		"false_positive_reason": reason,
	})
	if res.Error != nil {
		return translateError(res.Error, "mark_false_positive", "detector_result", resultID)
	}
	if res.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "mark_false_positive", "detector_result", resultID)
	}
	return nil
}

func (ds *DataStore) recordCacheHit() {
	if ds.metrics != nil {
		ds.metrics.CacheHits.Inc()
	}
}

func (ds *DataStore) recordCacheMiss() {
	if ds.metrics != nil {
		ds.metrics.CacheMisses.Inc()
	}
}
