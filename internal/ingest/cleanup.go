package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// CleanupDuplicates removes published events that share a title with a more
// recently updated published event. For each title, the row with the latest
// updated_at survives. Returns the number of rows removed.
func (e *Engine) CleanupDuplicates(ctx context.Context) (int64, error) {
	res, err := e.db.ExecContext(ctx, `
		DELETE FROM events
		WHERE status = 'published'
		  AND id NOT IN (
			SELECT id FROM (
				SELECT id, MAX(updated_at)
				FROM events
				WHERE status = 'published'
				GROUP BY title
			)
		  )`)
	if err != nil {
		return 0, fmt.Errorf("deleting duplicate events: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading cleanup row count: %w", err)
	}

	log.Info().Int64("removed", removed).Msg("Duplicate cleanup finished")
	return removed, nil
}
