package foods

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"nutriplan/internal/plan"
)

// LocalDB is the provider backed by the seeded SQLite food table. It is the
// fastest network-free source after the alias cache.
type LocalDB struct {
	db *sql.DB
}

// NewLocalDB wraps an open database handle. A nil handle means the local
// source is not configured; callers should skip constructing the provider.
func NewLocalDB(db *sql.DB) *LocalDB {
	return &LocalDB{db: db}
}

func (l *LocalDB) Name() string                { return "local-db" }
func (l *LocalDB) Provenance() plan.Provenance { return plan.ProvenanceLocalDB }

// Search matches food names by substring, shortest (most exact) names first.
func (l *LocalDB) Search(ctx context.Context, name string) ([]Candidate, error) {
	q := plan.NormalizeName(name)
	if q == "" {
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, name, kcal, protein_g, carbs_g, fat_g
		FROM foods
		WHERE name_lower LIKE '%' || ? || '%'
		ORDER BY length(name) ASC
		LIMIT 5`, q)
	if err != nil {
		return nil, fmt.Errorf("local food search failed: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			id  int64
			c   Candidate
			n   plan.Per100g
		)
		if err := rows.Scan(&id, &c.Description, &n.Kcal, &n.ProteinG, &n.CarbsG, &n.FatG); err != nil {
			return nil, fmt.Errorf("local food scan failed: %w", err)
		}
		c.FoodID = strconv.FormatInt(id, 10)
		c.Nutrition = &n
		out = append(out, c)
	}
	return out, rows.Err()
}

// Food fetches the per-100g vector for a single row.
func (l *LocalDB) Food(ctx context.Context, id string) (*plan.Per100g, error) {
	var n plan.Per100g
	err := l.db.QueryRowContext(ctx, `
		SELECT kcal, protein_g, carbs_g, fat_g FROM foods WHERE id = ?`, id).
		Scan(&n.Kcal, &n.ProteinG, &n.CarbsG, &n.FatG)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("food %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("local food fetch failed: %w", err)
	}
	return &n, nil
}
