package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"ai-list-filter/internal/common/config"
	"ai-list-filter/internal/common/errors"
	"ai-list-filter/internal/models"
)

const (
	defaultSearchLimit = 25
	defaultListLimit   = 500
)

// PostgresStore serves every datastore contract from PostgreSQL.
type PostgresStore struct {
	db          *sql.DB
	postTypes   map[string]config.PostTypeConfig
	searchLimit int
	listLimit   int
}

func NewPostgresStore(db *sql.DB, postTypes map[string]config.PostTypeConfig, searchLimit int) *PostgresStore {
	if searchLimit <= 0 {
		searchLimit = defaultSearchLimit
	}
	return &PostgresStore{
		db:          db,
		postTypes:   postTypes,
		searchLimit: searchLimit,
		listLimit:   defaultListLimit,
	}
}

func (s *PostgresStore) PostTitles(ctx context.Context, postType string) ([]string, error) {
	return s.names(ctx, "post_titles",
		`SELECT DISTINCT title AS name FROM posts WHERE post_type = $1 ORDER BY name ASC`,
		postType)
}

func (s *PostgresStore) LocationNames(ctx context.Context) ([]string, error) {
	return s.names(ctx, "location_names",
		`SELECT DISTINCT name FROM location_grid ORDER BY name ASC`)
}

func (s *PostgresStore) names(ctx context.Context, queryType, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryFailed(ctx, queryType, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, errors.NewQueryExecutionFailedError(queryType, err)
		}
		if v.Valid && v.String != "" {
			out = append(out, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError(queryType, err)
	}
	return out, nil
}

func (s *PostgresStore) SearchLocations(ctx context.Context, query string) ([]models.Option, error) {
	return s.options(ctx, "search_locations",
		`SELECT grid_id, COALESCE(NULLIF(full_name, ''), name) AS label
		FROM location_grid
		WHERE name ILIKE $1
		ORDER BY name ASC, grid_id ASC
		LIMIT $2`,
		containsPattern(query), s.searchLimit)
}

// SearchUsers returns users assignable to postType. A NULL
// assignable_post_types column means assignable to every type.
func (s *PostgresStore) SearchUsers(ctx context.Context, query, postType string) ([]models.Option, error) {
	return s.options(ctx, "search_users",
		`SELECT id, display_name
		FROM users
		WHERE display_name ILIKE $1
		  AND (assignable_post_types IS NULL OR $2 = ANY(assignable_post_types))
		ORDER BY display_name ASC, id ASC
		LIMIT $3`,
		containsPattern(query), postType, s.searchLimit)
}

func (s *PostgresStore) SearchPosts(ctx context.Context, query, postType string) ([]models.Option, error) {
	return s.options(ctx, "search_posts",
		`SELECT p.id, p.title
		FROM posts p
		WHERE p.post_type = $1
		  AND p.title ILIKE $2
		  AND NOT EXISTS (
		    SELECT 1 FROM post_meta m
		    WHERE m.post_id = p.id AND m.meta_key = $3 AND m.meta_value = 'closed'
		  )
		ORDER BY p.last_modified DESC, p.id DESC
		LIMIT $4`,
		postType, containsPattern(query), s.statusKey(postType), s.searchLimit)
}

func (s *PostgresStore) options(ctx context.Context, queryType, query string, args ...interface{}) ([]models.Option, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryFailed(ctx, queryType, err)
	}
	defer rows.Close()

	out := []models.Option{}
	for rows.Next() {
		var id, label string
		if err := rows.Scan(&id, &label); err != nil {
			return nil, errors.NewQueryExecutionFailedError(queryType, err)
		}
		out = append(out, models.Option{ID: models.ID(id), Label: label})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError(queryType, err)
	}
	return out, nil
}

// queryFailed maps a query error, reporting a spent deadline as a timeout.
func queryFailed(ctx context.Context, queryType string, err error) *errors.StandardError {
	if ctx.Err() == context.DeadlineExceeded {
		return errors.NewQueryTimeoutError(queryType)
	}
	return errors.NewQueryExecutionFailedError(queryType, err)
}

func (s *PostgresStore) statusKey(postType string) string {
	if pt, ok := s.postTypes[postType]; ok && pt.StatusKey != "" {
		return pt.StatusKey
	}
	return "status"
}

// ListPosts runs the list-by-filter query and attaches geocoded locations.
func (s *PostgresStore) ListPosts(ctx context.Context, postType string, fields models.QueryFields) ([]models.Post, error) {
	query, args := buildListQuery(postType, fields, s.listLimit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryFailed(ctx, "list_posts", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	index := map[string]int{}
	for rows.Next() {
		var (
			id       string
			name     string
			modified sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &modified); err != nil {
			return nil, errors.NewQueryExecutionFailedError("list_posts", err)
		}
		index[id] = len(posts)
		posts = append(posts, models.Post{
			ID:           models.ID(id),
			Name:         name,
			PostType:     postType,
			LastModified: modified.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list_posts", err)
	}
	if len(posts) == 0 {
		return posts, nil
	}

	if err := s.attachLocations(ctx, posts, index); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostgresStore) attachLocations(ctx context.Context, posts []models.Post, index map[string]int) error {
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, string(p.ID))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT post_id, grid_meta_id, grid_id, label, COALESCE(address, ''), lat, lng
		FROM location_grid_meta
		WHERE post_id::text = ANY($1)
		ORDER BY post_id, grid_meta_id`,
		pq.Array(ids))
	if err != nil {
		return errors.NewQueryExecutionFailedError("location_grid_meta", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID string
			meta   models.LocationMeta
			metaID string
			gridID string
		)
		if err := rows.Scan(&postID, &metaID, &gridID, &meta.Label, &meta.Address, &meta.Lat, &meta.Lng); err != nil {
			return errors.NewQueryExecutionFailedError("location_grid_meta", err)
		}
		meta.GridMetaID = models.ID(metaID)
		meta.GridID = models.ID(gridID)
		if i, ok := index[postID]; ok {
			posts[i].LocationGridMeta = append(posts[i].LocationGridMeta, meta)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.NewQueryExecutionFailedError("location_grid_meta", err)
	}
	return nil
}

func (s *PostgresStore) ModuleStates(ctx context.Context) (map[string]ModuleState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT module_id, visible, enabled FROM ai_modules`)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("ai_modules", err)
	}
	defer rows.Close()

	out := map[string]ModuleState{}
	for rows.Next() {
		var m ModuleState
		if err := rows.Scan(&m.ID, &m.Visible, &m.Enabled); err != nil {
			return nil, errors.NewQueryExecutionFailedError("ai_modules", err)
		}
		out[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("ai_modules", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveModuleState(ctx context.Context, state ModuleState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_modules (module_id, visible, enabled) VALUES ($1, $2, $3)
		ON CONFLICT (module_id) DO UPDATE SET visible = EXCLUDED.visible, enabled = EXCLUDED.enabled`,
		state.ID, state.Visible, state.Enabled)
	if err != nil {
		return errors.NewQueryExecutionFailedError("ai_modules", fmt.Errorf("save %s: %w", state.ID, err))
	}
	return nil
}
