package ledger

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"github.com/adrianvollmer/solvency/internal/errs"
)

// CategoryRepository handles the category tree, including the three
// built-in roots (Expenses, Income, Transfers) seeded by migration 0001.
type CategoryRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCategoryRepository constructs a CategoryRepository.
func NewCategoryRepository(db *sql.DB, log zerolog.Logger) *CategoryRepository {
	return &CategoryRepository{db: db, log: log.With().Str("repo", "category").Logger()}
}

func scanCategory(rs rowScanner) (Category, error) {
	var c Category
	var parentID sql.NullInt64
	var created, updated string
	if err := rs.Scan(&c.ID, &c.Name, &parentID, &c.Color, &c.Icon, &c.BuiltIn, &created, &updated); err != nil {
		return c, err
	}
	if parentID.Valid {
		id := parentID.Int64
		c.ParentID = &id
	}
	c.Created, _ = time.Parse(time.RFC3339, created)
	c.Updated, _ = time.Parse(time.RFC3339, updated)
	return c, nil
}

// Create inserts a new category. BuiltIn is always false for user-created
// categories; only migration 0001 seeds BuiltIn rows.
func (r *CategoryRepository) Create(c Category) (Category, error) {
	var parentID any
	if c.ParentID != nil {
		parentID = *c.ParentID
	}
	res, err := r.db.Exec(`INSERT INTO categories (name, parent_id, color, icon, built_in)
		VALUES (?, ?, ?, ?, 0)`, c.Name, parentID, c.Color, c.Icon)
	if err != nil {
		return Category{}, errs.Database(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Category{}, errs.Database(err)
	}
	return r.GetByID(id)
}

// GetByID returns a category by id.
func (r *CategoryRepository) GetByID(id int64) (Category, error) {
	row := r.db.QueryRow(`SELECT id, name, parent_id, color, icon, built_in, created, updated
		FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return Category{}, errs.NotFound("category %d not found", id)
	}
	if err != nil {
		return Category{}, errs.Database(err)
	}
	return c, nil
}

// GetAll returns every category ordered by name; callers materialize the
// tree via WithPaths.
func (r *CategoryRepository) GetAll() ([]Category, error) {
	rows, err := r.db.Query(`SELECT id, name, parent_id, color, icon, built_in, created, updated
		FROM categories ORDER BY name`)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update changes a category's name, parent, color, and icon. Built-in
// categories may be recolored/renamed but stay roots: a non-nil parent for
// a built-in category is rejected with a validation error.
func (r *CategoryRepository) Update(c Category) (Category, error) {
	existing, err := r.GetByID(c.ID)
	if err != nil {
		return Category{}, err
	}
	if existing.BuiltIn && c.ParentID != nil {
		return Category{}, errs.Validation("parent_id", "built-in category %q cannot be reparented", existing.Name)
	}
	var parentID any
	if c.ParentID != nil {
		parentID = *c.ParentID
	}
	_, err = r.db.Exec(`UPDATE categories SET name = ?, parent_id = ?, color = ?, icon = ?,
		updated = datetime('now') WHERE id = ?`, c.Name, parentID, c.Color, c.Icon, c.ID)
	if err != nil {
		return Category{}, errs.Database(err)
	}
	return r.GetByID(c.ID)
}

// Delete removes a category. Built-in categories cannot be deleted.
func (r *CategoryRepository) Delete(id int64) error {
	c, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if c.BuiltIn {
		return errs.Validation("id", "built-in categories cannot be deleted")
	}
	if _, err := r.db.Exec(`DELETE FROM categories WHERE id = ?`, id); err != nil {
		return errs.Database(err)
	}
	return nil
}

// WithPaths materializes every category's root-to-node path using "/" as a
// separator, e.g. "Expenses / Housing / Rent". Cycles (which the schema
// should never produce) are defended against with a depth cap.
func WithPaths(categories []Category) []CategoryWithPath {
	byID := make(map[int64]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	const maxDepth = 64
	var pathOf func(c Category, depth int) string
	pathOf = func(c Category, depth int) string {
		if c.ParentID == nil || depth >= maxDepth {
			return c.Name
		}
		parent, ok := byID[*c.ParentID]
		if !ok {
			return c.Name
		}
		return pathOf(parent, depth+1) + " / " + c.Name
	}

	out := make([]CategoryWithPath, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategoryWithPath{Category: c, Path: pathOf(c, 0)})
	}
	return out
}
