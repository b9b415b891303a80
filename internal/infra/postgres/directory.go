package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"medy-coop-service/internal/domain"
)

// Directory reads the friendship graph and user profiles.
type Directory struct {
	pool *pgxpool.Pool
}

func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

func (d *Directory) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var ok bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM friendships
		    WHERE status = 'accepted'
		      AND ((requester_id = $1 AND addressee_id = $2) OR (requester_id = $2 AND addressee_id = $1)))`,
		a, b,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return ok, nil
}

func (d *Directory) Profile(ctx context.Context, userID string) (domain.UserProfile, error) {
	var (
		p         domain.UserProfile
		studyYear *int32
	)
	err := d.pool.QueryRow(ctx,
		`SELECT id, speciality, study_year, university FROM users WHERE id = $1`, userID,
	).Scan(&p.ID, &p.Speciality, &studyYear, &p.University)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("load profile: %w", err)
	}
	if studyYear != nil {
		y := int(*studyYear)
		p.StudyYear = &y
	}
	return p, nil
}
