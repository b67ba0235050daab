package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/service/contact"
)

const contactColumns = `id, name, email, phone, company, website, service, budget, timeline,
	message, status, priority, tags, lead_score, source, ip_address, user_agent, notes,
	created_at, updated_at`

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct {
	conn func(ctx context.Context) (*sql.DB, error)
}

// NewContactRepo creates a Postgres-backed contact repository. conn is
// usually Handle.DB.
func NewContactRepo(conn func(ctx context.Context) (*sql.DB, error)) *ContactRepo {
	return &ContactRepo{conn: conn}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*domain.Contact, error) {
	var c domain.Contact
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Website, &c.Service,
		&c.Budget, &c.Timeline, &c.Message, &c.Status, &c.Priority, pq.Array(&c.Tags),
		&c.LeadScore, &c.Source, &c.IPAddress, &c.UserAgent, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepo) FindRecentByEmail(ctx context.Context, email string, since time.Time) (*domain.Contact, error) {
	db, err := session(ctx, r.conn)
	if err != nil {
		return nil, err
	}
	c, err := scanContact(db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE email = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`, email, since))
	if err != nil && !errors.Is(err, contact.ErrNotFound) {
		return nil, fmt.Errorf("find recent contact: %w", err)
	}
	return c, err
}

func (r *ContactRepo) Insert(ctx context.Context, c *domain.Contact) error {
	db, err := session(ctx, r.conn)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO contacts (`+contactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`, c.ID, c.Name, c.Email, c.Phone, c.Company, c.Website, string(c.Service), c.Budget, c.Timeline,
		c.Message, string(c.Status), string(c.Priority), pq.Array(c.Tags), c.LeadScore, c.Source,
		c.IPAddress, c.UserAgent, c.Notes, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) Get(ctx context.Context, id string) (*domain.Contact, error) {
	db, err := session(ctx, r.conn)
	if err != nil {
		return nil, err
	}
	c, err := scanContact(db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
	if err != nil && !errors.Is(err, contact.ErrNotFound) {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, err
}

func (r *ContactRepo) UpdateStatus(ctx context.Context, id string, status domain.ContactStatus, notes *string, at time.Time) (*domain.Contact, error) {
	db, err := session(ctx, r.conn)
	if err != nil {
		return nil, err
	}
	var n sql.NullString
	if notes != nil {
		n = sql.NullString{String: *notes, Valid: true}
	}
	c, err := scanContact(db.QueryRowContext(ctx, `
		UPDATE contacts
		SET status = $2, notes = COALESCE($3, notes), updated_at = $4
		WHERE id = $1
		RETURNING `+contactColumns,
		id, string(status), n, at))
	if err != nil && !errors.Is(err, contact.ErrNotFound) {
		return nil, fmt.Errorf("update contact status: %w", err)
	}
	return c, err
}

func (r *ContactRepo) Stats(ctx context.Context, since time.Time) (*domain.ContactStats, error) {
	db, err := session(ctx, r.conn)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT status, priority, source, COUNT(*), COUNT(*) FILTER (WHERE created_at >= $1)
		FROM contacts
		GROUP BY status, priority, source
	`, since)
	if err != nil {
		return nil, fmt.Errorf("contact stats: %w", err)
	}
	defer rows.Close()

	st := &domain.ContactStats{
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
		BySource:   make(map[string]int),
	}
	for rows.Next() {
		var status, priority, source string
		var total, recent int
		if err := rows.Scan(&status, &priority, &source, &total, &recent); err != nil {
			return nil, fmt.Errorf("scan contact stats: %w", err)
		}
		st.Total += total
		st.Last24Hours += recent
		st.ByStatus[status] += total
		st.ByPriority[priority] += total
		st.BySource[source] += total
	}
	return st, rows.Err()
}
