// Package filmstore snapshots scraped films and members into sqlite,
// so repeated lookups can come off disk instead of the site.
package filmstore

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Store struct {
	db *sql.DB
}

func New(database *sql.DB) Store {
	return Store{db: database}
}

// FilmSnapshot is one film's cached scrape: its identity, the derived
// scores, and the full rating histogram.
type FilmSnapshot struct {
	Slug     string
	Title    string
	Year     int
	TrueMean float64
	Bayesian float64
	// Ratings counts votes per half-star unit 1-10.
	Ratings   map[int]int64
	FetchedAt time.Time
}

type MemberSnapshot struct {
	Username    string
	DisplayName string
	FetchedAt   time.Time
}

// PutFilms writes a batch of film snapshots in one transaction, each
// replacing whatever was stored under its slug.
func (s Store) PutFilms(ctx context.Context, films []FilmSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	qry := s.withTx(tx)

	for _, film := range films {
		err := qry.upsertFilm(ctx, film)
		if err != nil {
			return err
		}
		err = qry.replaceRatings(ctx, film.Slug, film.Ratings)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s Store) PutMember(ctx context.Context, member MemberSnapshot) error {
	return queries{db: s.db}.upsertMember(ctx, member)
}

// GetFilm loads a snapshot by slug, false when none is stored.
func (s Store) GetFilm(ctx context.Context, slug string) (FilmSnapshot, bool, error) {
	return queries{db: s.db}.getFilm(ctx, slug)
}

// GetMember loads a snapshot by username, false when none is stored.
func (s Store) GetMember(ctx context.Context, username string) (MemberSnapshot, bool, error) {
	return queries{db: s.db}.getMember(ctx, username)
}

// dbtx is the slice of database/sql shared by *sql.DB and *sql.Tx, so
// statements can run inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

func (s Store) withTx(tx *sql.Tx) queries {
	return queries{db: tx}
}

func (q queries) upsertFilm(ctx context.Context, film FilmSnapshot) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO films (slug, title, year, true_mean, bayesian, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			title = excluded.title,
			year = excluded.year,
			true_mean = excluded.true_mean,
			bayesian = excluded.bayesian,
			fetched_at = excluded.fetched_at`,
		film.Slug, film.Title, film.Year,
		film.TrueMean, film.Bayesian, film.FetchedAt.Unix())
	return err
}

func (q queries) replaceRatings(ctx context.Context, slug string, ratings map[int]int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM film_ratings WHERE slug = ?`, slug)
	if err != nil {
		return err
	}
	for halfStars := 1; halfStars <= 10; halfStars++ {
		count, ok := ratings[halfStars]
		if !ok {
			continue
		}
		_, err := q.db.ExecContext(ctx,
			`INSERT INTO film_ratings (slug, half_stars, count) VALUES (?, ?, ?)`,
			slug, halfStars, count)
		if err != nil {
			return err
		}
	}
	return nil
}

func (q queries) upsertMember(ctx context.Context, member MemberSnapshot) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO members (username, display_name, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET
			display_name = excluded.display_name,
			fetched_at = excluded.fetched_at`,
		member.Username, member.DisplayName, member.FetchedAt.Unix())
	return err
}

func (q queries) getFilm(ctx context.Context, slug string) (FilmSnapshot, bool, error) {
	film := FilmSnapshot{Slug: slug}
	var fetchedAt int64
	err := q.db.QueryRowContext(ctx, `
		SELECT title, year, true_mean, bayesian, fetched_at
		FROM films WHERE slug = ?`, slug).
		Scan(&film.Title, &film.Year, &film.TrueMean, &film.Bayesian, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return FilmSnapshot{}, false, nil
	}
	if err != nil {
		return FilmSnapshot{}, false, err
	}
	film.FetchedAt = time.Unix(fetchedAt, 0)

	rows, err := q.db.QueryContext(ctx,
		`SELECT half_stars, count FROM film_ratings WHERE slug = ?`, slug)
	if err != nil {
		return FilmSnapshot{}, false, err
	}
	defer rows.Close()

	film.Ratings = map[int]int64{}
	for rows.Next() {
		var halfStars int
		var count int64
		err := rows.Scan(&halfStars, &count)
		if err != nil {
			return FilmSnapshot{}, false, err
		}
		film.Ratings[halfStars] = count
	}
	return film, true, rows.Err()
}

func (q queries) getMember(ctx context.Context, username string) (MemberSnapshot, bool, error) {
	member := MemberSnapshot{Username: username}
	var fetchedAt int64
	err := q.db.QueryRowContext(ctx, `
		SELECT display_name, fetched_at FROM members WHERE username = ?`, username).
		Scan(&member.DisplayName, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return MemberSnapshot{}, false, nil
	}
	if err != nil {
		return MemberSnapshot{}, false, err
	}
	member.FetchedAt = time.Unix(fetchedAt, 0)
	return member, true, nil
}
