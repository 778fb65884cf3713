package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/vasterlake/enron-email-analytics/internal/normalize"
	"github.com/vasterlake/enron-email-analytics/internal/parser"
	"github.com/vasterlake/enron-email-analytics/internal/source"
	"github.com/vasterlake/enron-email-analytics/internal/store"
)

// RecordSource yields raw records until io.EOF.
type RecordSource interface {
	Next() (source.Record, error)
}

// Pipeline drives a sequence of raw records through parsing, entity
// resolution and idempotent insertion. It is a single logical writer;
// writes are grouped into fixed-size batches committed together.
type Pipeline struct {
	store     *store.Store
	source    RecordSource
	batchSize int
	logger    *slog.Logger
	progress  bool
}

// New creates a pipeline over the given store and record source.
func New(st *store.Store, src RecordSource, batchSize int, logger *slog.Logger) *Pipeline {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Pipeline{
		store:     st,
		source:    src,
		batchSize: batchSize,
		logger:    logger,
	}
}

// WithProgress enables console progress lines at batch boundaries.
func (p *Pipeline) WithProgress(enabled bool) *Pipeline {
	p.progress = enabled
	return p
}

// Result contains running counts for one ingestion run.
type Result struct {
	Processed  int // records seen, including skipped ones
	Inserted   int // email rows newly created
	Duplicates int // records whose identity key already existed
	Skipped    int // unparsable or unresolvable records
	Duration   time.Duration
}

// LogAttrs renders the result as slog attributes.
func (r *Result) LogAttrs() []any {
	return []any{
		"processed", r.Processed,
		"inserted", r.Inserted,
		"duplicates", r.Duplicates,
		"skipped", r.Skipped,
		"duration", r.Duration,
	}
}

// Run ingests records until the source is exhausted. Cancellation is
// honored between records; the current batch is rolled back, so a
// subsequent run resumes without duplicate rows.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	res := &Result{}

	batch, err := p.store.Begin()
	if err != nil {
		return nil, err
	}
	inBatch := 0

	for {
		if err := ctx.Err(); err != nil {
			_ = batch.Rollback()
			return nil, err
		}

		rec, err := p.source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = batch.Rollback()
			return nil, fmt.Errorf("record stream failed: %w", err)
		}

		p.ingest(batch, rec, res)
		res.Processed++
		inBatch++

		if inBatch >= p.batchSize {
			if err := batch.Commit(); err != nil {
				return nil, err
			}
			p.reportBatch(res)

			batch, err = p.store.Begin()
			if err != nil {
				return nil, err
			}
			inBatch = 0
		}
	}

	if err := batch.Commit(); err != nil {
		return nil, err
	}

	res.Duration = time.Since(started)
	p.reportFinal(res)
	return res, nil
}

// ingest processes one record. Every failure mode short of a broken
// record stream is recovered locally and surfaces as a count, not an
// error to the caller.
func (p *Pipeline) ingest(batch *store.Batch, rec source.Record, res *Result) {
	env, err := parser.Parse(rec.Raw)
	if err != nil {
		res.Skipped++
		p.logger.Debug("skipping unparsable record", "folder", rec.Folder, "err", err)
		return
	}

	senderEmail, senderName := p.resolveSenderIdentity(env)

	var fromPerson, fromDomain sql.NullInt64
	if senderEmail != "" {
		fromPerson, err = batch.ResolvePerson(senderEmail, senderName)
		if err != nil {
			res.Skipped++
			p.logger.Warn("failed to resolve sender", "email", senderEmail, "err", err)
			return
		}
		fromDomain, err = batch.ResolveDomain(normalize.Domain(senderEmail))
		if err != nil {
			res.Skipped++
			p.logger.Warn("failed to resolve sender domain", "email", senderEmail, "err", err)
			return
		}
	}

	bodyHash := store.BodyHash(env.Body)
	row := &store.EmailRow{
		MessageID:    store.IdentityKey(env.MessageID, bodyHash),
		FromPersonID: fromPerson,
		FromDomainID: fromDomain,
		Subject:      env.Subject,
		Body:         env.Body,
		BodyHash:     bodyHash,
		InReplyTo:    env.InReplyTo,
		References:   env.References,
		Folder:       rec.Folder,
	}
	if d := env.Date; d != nil {
		row.SentUTC = sql.NullString{String: d.UTC, Valid: true}
		row.Year = sql.NullInt64{Int64: int64(d.Year), Valid: true}
		row.Month = sql.NullInt64{Int64: int64(d.Month), Valid: true}
		row.Day = sql.NullInt64{Int64: int64(d.Day), Valid: true}
		row.Hour = sql.NullInt64{Int64: int64(d.Hour), Valid: true}
	}

	emailID, created, err := batch.InsertEmail(row)
	if err != nil {
		// No identity means no recipients can be linked.
		res.Skipped++
		p.logger.Warn("failed to insert email", "messageID", row.MessageID, "err", err)
		return
	}
	if created {
		res.Inserted++
	} else {
		res.Duplicates++
	}

	p.expandRecipients(batch, emailID, env)
}

// resolveSenderIdentity picks the sender address and display name from the
// From header. When the From header carried no usable name of its own (the
// parsed name is just the local-part derivation), the X-From directory-export
// header is tried first, provided it does not itself look like an address.
func (p *Pipeline) resolveSenderIdentity(env *parser.Envelope) (email, name string) {
	senders := parser.ParseAddressList(env.From)
	if len(senders) == 0 {
		return "", ""
	}
	email, name = senders[0].Email, senders[0].Name

	if derived := normalize.NameFromEmail(email); name == "" || name == derived {
		if alt := strings.TrimSpace(env.XFrom); alt != "" && !strings.Contains(alt, "@") {
			if altName := normalize.DisplayName(alt, ""); altName != "" {
				name = altName
			}
		}
		if name == "" {
			name = derived
		}
	}
	return email, name
}

// expandRecipients resolves each To/Cc/Bcc entry and links it to the
// email row. Duplicate links are absorbed by the storage constraint.
func (p *Pipeline) expandRecipients(batch *store.Batch, emailID int64, env *parser.Envelope) {
	headers := []struct {
		value string
		kind  store.RecipientKind
	}{
		{env.To, store.KindTo},
		{env.Cc, store.KindCc},
		{env.Bcc, store.KindBcc},
	}

	for _, h := range headers {
		for _, addr := range parser.ParseAddressList(h.value) {
			personID, err := batch.ResolvePerson(addr.Email, addr.Name)
			if err != nil || !personID.Valid {
				p.logger.Debug("skipping recipient", "email", addr.Email, "kind", h.kind, "err", err)
				continue
			}
			domainID, err := batch.ResolveDomain(normalize.Domain(addr.Email))
			if err != nil {
				p.logger.Debug("skipping recipient domain", "email", addr.Email, "err", err)
				continue
			}
			if err := batch.InsertRecipient(emailID, personID.Int64, domainID, h.kind); err != nil {
				p.logger.Warn("failed to link recipient", "email", addr.Email, "kind", h.kind, "err", err)
			}
		}
	}
}

func (p *Pipeline) reportBatch(res *Result) {
	if p.progress {
		pterm.Info.Printf("Processed rows: %d | Inserted emails: %d\n", res.Processed, res.Inserted)
	}
	p.logger.Debug("batch committed", "processed", res.Processed, "inserted", res.Inserted)
}

func (p *Pipeline) reportFinal(res *Result) {
	if p.progress {
		pterm.Success.Printf("Ingestion complete. Rows processed: %d | Emails inserted: %d\n",
			res.Processed, res.Inserted)
	}
	p.logger.Info("ingestion summary", res.LogAttrs()...)
}
