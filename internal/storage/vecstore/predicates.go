package vecstore

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/mvp-joe/cortex-rag/internal/knowledge/errs"
)

// MetadataFilter mirrors the Retrieval Filter's metadata predicates at
// the typed-column level. It lets the SQLite index push matching down
// into SQL instead of loading every chunk and filtering in Go.
type MetadataFilter struct {
	FileTypes     []string
	Languages     []string
	CreatedAfter  time.Time
	ModifiedAfter time.Time
}

// Empty reports whether f has no populated field, matching
// rag.Predicates.empty's all-fields-zero convention.
func (f MetadataFilter) Empty() bool {
	return len(f.FileTypes) == 0 && len(f.Languages) == 0 &&
		f.CreatedAfter.IsZero() && f.ModifiedAfter.IsZero()
}

// CandidateIDs returns the set of chunk ids whose typed columns satisfy
// f. Callers that want predicate pushdown narrow a Search's candidate
// set to this before ranking; a full table scan over "chunks" with no
// WHERE clause is skipped entirely when f is empty.
func (s *SQLite) CandidateIDs(f MetadataFilter) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := squirrel.Select("id").From("chunks").PlaceholderFormat(squirrel.Question)
	if len(f.FileTypes) > 0 {
		q = q.Where(squirrel.Eq{"file_type": f.FileTypes})
	}
	if len(f.Languages) > 0 {
		q = q.Where(squirrel.Eq{"language": f.Languages})
	}
	if !f.CreatedAfter.IsZero() {
		q = q.Where(squirrel.GtOrEq{"created_at": f.CreatedAfter.UTC().Format(time.RFC3339Nano)})
	}
	if !f.ModifiedAfter.IsZero() {
		q = q.Where(squirrel.GtOrEq{"file_modified_at": f.ModifiedAfter.UTC().Format(time.RFC3339Nano)})
	}

	rows, err := q.RunWith(runner{s.db}).Query()
	if err != nil {
		return nil, errs.NewError(errs.KindIO, err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.NewError(errs.KindIO, err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// runner adapts *sql.DB to squirrel.BaseRunner; CandidateIDs takes
// s.db under s.mu, so the wrapper keeps the lock scope explicit at the
// call site.
type runner struct {
	db *sql.DB
}

func (r runner) Exec(query string, args ...interface{}) (sql.Result, error) {
	return r.db.Exec(query, args...)
}

func (r runner) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return r.db.Query(query, args...)
}
