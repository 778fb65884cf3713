package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vasterlake/enron-email-analytics/internal/normalize"
)

// RecipientKind distinguishes the three recipient header kinds.
type RecipientKind string

const (
	KindTo  RecipientKind = "to"
	KindCc  RecipientKind = "cc"
	KindBcc RecipientKind = "bcc"
)

// Person is one resolved correspondent identity.
type Person struct {
	PersonID    int64          `db:"person_id"`
	DisplayName sql.NullString `db:"display_name"`
	Email       string         `db:"email"`
}

// EmailRow is one row of the emails table. SentUTC and the calendar
// fields are null when the Date header was missing or unparsable.
type EmailRow struct {
	MessageID    string
	FromPersonID sql.NullInt64
	FromDomainID sql.NullInt64
	SentUTC      sql.NullString
	Year         sql.NullInt64
	Month        sql.NullInt64
	Day          sql.NullInt64
	Hour         sql.NullInt64
	Subject      string
	Body         string
	BodyHash     string
	InReplyTo    string
	References   string
	Folder       string
}

// ResolveDomain creates the domain row if absent and returns its id.
// Idempotent; empty input resolves to null without creating a row.
func (b *Batch) ResolveDomain(domain string) (sql.NullInt64, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return sql.NullInt64{}, nil
	}

	var id int64
	err := b.tx.Get(&id, `
		INSERT INTO domains (domain)
		VALUES (?)
		ON CONFLICT(domain) DO NOTHING
		RETURNING domain_id
	`, domain)
	if errors.Is(err, sql.ErrNoRows) {
		err = b.tx.Get(&id, `SELECT domain_id FROM domains WHERE domain = ?`, domain)
	}
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("failed to resolve domain %q: %w", domain, err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

// ResolvePerson creates the person row if absent and returns its id.
// A structurally invalid candidate name (angle brackets or residual
// directory artifacts) is discarded before comparison. On conflict the
// stored name is replaced only when it is empty, still corrupted, or
// strictly shorter than the candidate - quality never regresses.
func (b *Batch) ResolvePerson(email, displayName string) (sql.NullInt64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return sql.NullInt64{}, nil
	}
	if displayName != "" && (strings.ContainsAny(displayName, "<>") || normalize.HasDirectoryArtifact(displayName)) {
		displayName = ""
	}

	var id int64
	err := b.tx.Get(&id, `
		INSERT INTO persons (email, display_name)
		VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET
			display_name = CASE
				WHEN (excluded.display_name IS NOT NULL AND excluded.display_name <> '')
					AND (
						persons.display_name IS NULL OR persons.display_name = ''
						OR persons.display_name LIKE '%/O=%'
						OR persons.display_name LIKE '%CN=%'
						OR persons.display_name LIKE '%<%'
						OR persons.display_name LIKE '%>%'
						OR persons.display_name LIKE '%@%'
						OR length(excluded.display_name) > length(persons.display_name)
					)
				THEN excluded.display_name
				ELSE persons.display_name
			END
		RETURNING person_id
	`, email, nullString(displayName))
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("failed to resolve person %q: %w", email, err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

// InsertEmail inserts the row keyed by its message_id identity key, or
// returns the existing row's id when the key is already present. The
// second return reports whether a new row was created. Rows are
// append-only; duplicates are no-ops.
func (b *Batch) InsertEmail(row *EmailRow) (int64, bool, error) {
	var id int64
	err := b.tx.Get(&id, `
		INSERT INTO emails (
			message_id, from_person_id, from_domain_id, sent_utc,
			year, month, day, hour, subject, body, body_hash,
			in_reply_to, msg_references, folder, is_auto, is_internal
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
		ON CONFLICT(message_id) DO NOTHING
		RETURNING email_id
	`,
		row.MessageID, row.FromPersonID, row.FromDomainID, row.SentUTC,
		row.Year, row.Month, row.Day, row.Hour, row.Subject, row.Body, row.BodyHash,
		row.InReplyTo, row.References, row.Folder,
	)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("failed to insert email %q: %w", row.MessageID, err)
	}

	if err := b.tx.Get(&id, `SELECT email_id FROM emails WHERE message_id = ?`, row.MessageID); err != nil {
		return 0, false, fmt.Errorf("failed to look up email %q: %w", row.MessageID, err)
	}
	return id, false, nil
}

// InsertRecipient links an email to a person under a recipient kind.
// Duplicate (email, person, kind) triples are silently absorbed by the
// primary key constraint.
func (b *Batch) InsertRecipient(emailID, personID int64, domainID sql.NullInt64, kind RecipientKind) error {
	_, err := b.tx.Exec(`
		INSERT OR IGNORE INTO email_recipients (email_id, person_id, domain_id, recipient_kind)
		VALUES (?, ?, ?, ?)
	`, emailID, personID, domainID, string(kind))
	if err != nil {
		return fmt.Errorf("failed to insert recipient link: %w", err)
	}
	return nil
}

// PersonByEmail retrieves a person by their unique address, or nil when
// absent.
func (s *Store) PersonByEmail(email string) (*Person, error) {
	p := &Person{}
	err := s.db.Get(p, `SELECT person_id, display_name, email FROM persons WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}
	return p, nil
}

// RecipientKinds returns the kinds under which a person is linked to an
// email, ordered alphabetically.
func (s *Store) RecipientKinds(emailID, personID int64) ([]string, error) {
	var kinds []string
	err := s.db.Select(&kinds, `
		SELECT recipient_kind FROM email_recipients
		WHERE email_id = ? AND person_id = ?
		ORDER BY recipient_kind
	`, emailID, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipient kinds: %w", err)
	}
	return kinds, nil
}
