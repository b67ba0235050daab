package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/service/subscriber"
)

const subscriberColumns = `id, email, status, source, tags, preferences, engagement_score,
	emails_sent, emails_opened, emails_clicked, bounce_count, last_email_sent,
	ip_address, user_agent, subscribed_at, updated_at, unsubscribed_at`

const uniqueViolation = "23505"

// SubscriberRepo implements subscriber.Repository against PostgreSQL.
type SubscriberRepo struct {
	conn func(ctx context.Context) (*sql.DB, error)
}

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(conn func(ctx context.Context) (*sql.DB, error)) *SubscriberRepo {
	return &SubscriberRepo{conn: conn}
}

func scanSubscriber(row rowScanner) (*domain.Subscriber, error) {
	var (
		s              domain.Subscriber
		prefs          []byte
		lastSent       sql.NullTime
		unsubscribedAt sql.NullTime
	)
	err := row.Scan(&s.ID, &s.Email, &s.Status, &s.Source, pq.Array(&s.Tags), &prefs,
		&s.EngagementScore, &s.EmailsSent, &s.EmailsOpened, &s.EmailsClicked, &s.BounceCount,
		&lastSent, &s.IPAddress, &s.UserAgent, &s.SubscribedAt, &s.UpdatedAt, &unsubscribedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscriber.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Preferences = domain.DefaultPreferences()
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &s.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	if lastSent.Valid {
		s.LastEmailSent = &lastSent.Time
	}
	if unsubscribedAt.Valid {
		s.UnsubscribedAt = &unsubscribedAt.Time
	}
	return &s, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *SubscriberRepo) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	db, err := session(ctx, r.conn)
	if err != nil {
		return nil, err
	}
	s, err := scanSubscriber(db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = $1`, email))
	if err != nil && !errors.Is(err, subscriber.ErrNotFound) {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return s, err
}

func (r *SubscriberRepo) Insert(ctx context.Context, s *domain.Subscriber) error {
	db, err := session(ctx, r.conn)
	if err != nil {
		return err
	}
	prefs, err := json.Marshal(s.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO subscribers (`+subscriberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, s.ID, s.Email, string(s.Status), s.Source, pq.Array(s.Tags), prefs, s.EngagementScore,
		s.EmailsSent, s.EmailsOpened, s.EmailsClicked, s.BounceCount, nullTime(s.LastEmailSent),
		s.IPAddress, s.UserAgent, s.SubscribedAt, s.UpdatedAt, nullTime(s.UnsubscribedAt))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return subscriber.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert subscriber: %w", err)
	}
	return nil
}

func (r *SubscriberRepo) Update(ctx context.Context, s *domain.Subscriber) error {
	db, err := session(ctx, r.conn)
	if err != nil {
		return err
	}
	prefs, err := json.Marshal(s.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	res, err := db.ExecContext(ctx, `
		UPDATE subscribers
		SET status = $2, source = $3, tags = $4, preferences = $5,
			subscribed_at = $6, unsubscribed_at = $7, updated_at = $8
		WHERE id = $1
	`, s.ID, string(s.Status), s.Source, pq.Array(s.Tags), prefs,
		s.SubscribedAt, nullTime(s.UnsubscribedAt), s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subscriber.ErrNotFound
	}
	return nil
}

func (r *SubscriberRepo) RecordEmailSent(ctx context.Context, id string, at time.Time) error {
	db, err := session(ctx, r.conn)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE subscribers
		SET emails_sent = emails_sent + 1, last_email_sent = $2, updated_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("record email sent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subscriber.ErrNotFound
	}
	return nil
}

func (r *SubscriberRepo) Stats(ctx context.Context) (*domain.SubscriberStats, error) {
	db, err := session(ctx, r.conn)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT status, source, COUNT(*) FROM subscribers GROUP BY status, source`)
	if err != nil {
		return nil, fmt.Errorf("subscriber stats: %w", err)
	}
	defer rows.Close()

	st := &domain.SubscriberStats{
		ByStatus: make(map[string]int),
		BySource: make(map[string]int),
	}
	for rows.Next() {
		var status, source string
		var n int
		if err := rows.Scan(&status, &source, &n); err != nil {
			return nil, fmt.Errorf("scan subscriber stats: %w", err)
		}
		st.Total += n
		st.ByStatus[status] += n
		st.BySource[source] += n
		if status == string(domain.SubscriberActive) {
			st.Active += n
		}
	}
	return st, rows.Err()
}
