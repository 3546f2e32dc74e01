// maintenance.go exposes the storage upkeep primitives invoked by the
// maintenance scheduler and by on-demand API calls.
package datastore

import (
	"time"
)

// Compact reclaims freed space in the database file.
func (ds *DataStore) Compact() error {
	start := time.Now()
	if err := ds.DB.Exec("VACUUM").Error; err != nil {
		return translateError(err, "compact", "database", nil)
	}
	ds.logger.Info("storage compacted", "duration", time.Since(start))
	return nil
}

// RefreshStatistics updates the query planner statistics.
func (ds *DataStore) RefreshStatistics() error {
	start := time.Now()
	if err := ds.DB.Exec("ANALYZE").Error; err != nil {
		return translateError(err, "refresh_statistics", "database", nil)
	}
	ds.logger.Info("query planner statistics refreshed", "duration", time.Since(start))
	return nil
}

// OrphanSweep deletes frame and detector-result rows whose parent take no
// longer exists. Cascading foreign keys make this a no-op for the normal
// delete path; it cleans up after any code path that removed a take
// out-of-band. Returns the number of rows removed.
func (ds *DataStore) OrphanSweep() (int64, error) {
	var removed int64

	res := ds.DB.Exec("DELETE FROM frames WHERE take_id NOT IN (SELECT id FROM takes)")
	if res.Error != nil {
		return removed, translateError(res.Error, "orphan_sweep", "frame", nil)
	}
	removed += res.RowsAffected

	res = ds.DB.Exec("DELETE FROM detector_results WHERE take_id NOT IN (SELECT id FROM takes)")
	if res.Error != nil {
		return removed, translateError(res.Error, "orphan_sweep", "detector_result", nil)
	}
	removed += res.RowsAffected

	if removed > 0 {
		ds.logger.Warn("orphan sweep removed rows", "rows", removed)
		if ds.metrics != nil {
			ds.metrics.OrphansRemoved.Add(float64(removed))
		}
	}
	return removed, nil
}
