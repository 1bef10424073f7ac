package reviews

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"permit-backend/internal/analysis"
)

// PGStore implements Store on the plan_reviews table.
type PGStore struct {
	DB *sql.DB
}

const reviewColumns = `id, created_at, status, analysis, error_message, city, image_source, image_key`

func (s *PGStore) Put(ctx context.Context, review Review) error {
	const query = `
INSERT INTO plan_reviews (id, created_at, status, analysis, error_message, city, image_source, image_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	analysis = EXCLUDED.analysis,
	error_message = EXCLUDED.error_message,
	city = EXCLUDED.city,
	image_source = EXCLUDED.image_source,
	image_key = EXCLUDED.image_key,
	updated_at = now()`

	var analysisPayload any
	if a, ok := review.Analysis(); ok {
		raw, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal analysis: %w", err)
		}
		analysisPayload = raw
	}
	var errorMessage any
	if msg, ok := review.ErrorMessage(); ok {
		errorMessage = msg
	}

	_, err := s.DB.ExecContext(ctx, query,
		review.ID,
		review.CreatedAt.UTC(),
		string(review.Status()),
		analysisPayload,
		errorMessage,
		nullable(review.City),
		nullable(review.ImageSource),
		review.ImageKey,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM plan_reviews WHERE id = $1`
	review, err := scanReview(s.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Review{}, ErrNotFound
	}
	return review, err
}

func (s *PGStore) ListRecent(ctx context.Context, n int) ([]Review, error) {
	if n <= 0 {
		return []Review{}, nil
	}
	query := `SELECT ` + reviewColumns + ` FROM plan_reviews ORDER BY created_at DESC, seq ASC LIMIT $1`
	rows, err := s.DB.QueryContext(ctx, query, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, review)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (Review, error) {
	var (
		r            Review
		status       string
		rawAnalysis  []byte
		errorMessage sql.NullString
		city         sql.NullString
		imageSource  sql.NullString
	)
	if err := row.Scan(&r.ID, &r.CreatedAt, &status, &rawAnalysis, &errorMessage, &city, &imageSource, &r.ImageKey); err != nil {
		return Review{}, err
	}

	var a *analysis.Analysis
	if len(rawAnalysis) > 0 {
		a = &analysis.Analysis{}
		if err := json.Unmarshal(rawAnalysis, a); err != nil {
			return Review{}, fmt.Errorf("decode analysis for review %s: %w", r.ID, err)
		}
	}
	var msg *string
	if errorMessage.Valid {
		msg = &errorMessage.String
	}
	outcome, err := outcomeFor(Status(status), a, msg)
	if err != nil {
		return Review{}, fmt.Errorf("review %s: %w", r.ID, err)
	}
	r.Outcome = outcome
	r.CreatedAt = r.CreatedAt.UTC()
	r.City = city.String
	r.ImageSource = imageSource.String
	return r, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*PGStore)(nil)
