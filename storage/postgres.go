package storage

import (
	"context"
	"fmt"

	"unibook-bot/types"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store handles the relational side: booking records, the check log and the
// read-only course catalog.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() {
	s.pool.Close()
}

// LogCheck records one scan attempt for a course, regardless of outcome.
func (s *Store) LogCheck(ctx context.Context, courseID int) error {
	const q = `INSERT INTO course_checks (course_id, checked_at) VALUES ($1, now())`
	_, err := s.pool.Exec(ctx, q, courseID)
	return err
}

// SaveBooking writes the durable record of one successful booking.
func (s *Store) SaveBooking(ctx context.Context, rec types.BookingRecord) error {
	const q = `INSERT INTO bookings (course_id, checked_at, booked_at, start_time, end_time, room)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, q,
		rec.CourseID, rec.CheckedAt, rec.BookedAt, rec.StartTime, rec.EndTime, rec.Room)
	return err
}

// ListActiveBookings returns bookings whose start time is still in the
// future, joined with their course names, soonest first.
func (s *Store) ListActiveBookings(ctx context.Context) ([]types.ActiveBooking, error) {
	const q = `SELECT c.name, b.start_time, b.end_time, b.room
		FROM bookings b
		JOIN courses c ON b.course_id = c.id
		WHERE b.start_time > now()
		ORDER BY b.start_time`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []types.ActiveBooking
	for rows.Next() {
		var b types.ActiveBooking
		if err := rows.Scan(&b.CourseName, &b.StartTime, &b.EndTime, &b.Room); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// GetCourses reads catalog entries for the given course IDs.
func (s *Store) GetCourses(ctx context.Context, ids []int) ([]types.Course, error) {
	const q = `SELECT id, name FROM courses WHERE id = ANY($1) ORDER BY id`
	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []types.Course
	for rows.Next() {
		var c types.Course
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}
