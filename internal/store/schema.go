package store

// Fixed output contract: four tables plus the lookups downstream
// analytical queries rely on. The "references" header is stored as
// msg_references because REFERENCES is an SQL keyword.
const schema = `
CREATE TABLE IF NOT EXISTS persons (
    person_id INTEGER PRIMARY KEY,
    display_name TEXT,
    email TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS domains (
    domain_id INTEGER PRIMARY KEY,
    domain TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS emails (
    email_id INTEGER PRIMARY KEY,
    message_id TEXT UNIQUE,
    from_person_id INTEGER,
    from_domain_id INTEGER,
    sent_utc TEXT,
    year INTEGER,
    month INTEGER,
    day INTEGER,
    hour INTEGER,
    subject TEXT,
    body TEXT,
    body_hash TEXT,
    in_reply_to TEXT,
    msg_references TEXT,
    folder TEXT,
    is_auto BOOLEAN DEFAULT 0,
    is_internal BOOLEAN DEFAULT 0,
    FOREIGN KEY (from_person_id) REFERENCES persons(person_id),
    FOREIGN KEY (from_domain_id) REFERENCES domains(domain_id)
);

CREATE TABLE IF NOT EXISTS email_recipients (
    email_id INTEGER NOT NULL,
    person_id INTEGER NOT NULL,
    domain_id INTEGER,
    recipient_kind TEXT CHECK (recipient_kind IN ('to','cc','bcc')),
    PRIMARY KEY (email_id, person_id, recipient_kind),
    FOREIGN KEY (email_id) REFERENCES emails(email_id),
    FOREIGN KEY (person_id) REFERENCES persons(person_id),
    FOREIGN KEY (domain_id) REFERENCES domains(domain_id)
);

CREATE INDEX IF NOT EXISTS idx_emails_sent_utc ON emails(sent_utc);
CREATE INDEX IF NOT EXISTS idx_emails_from_person ON emails(from_person_id);
CREATE INDEX IF NOT EXISTS idx_emails_from_domain ON emails(from_domain_id);
CREATE INDEX IF NOT EXISTS idx_recip_person ON email_recipients(person_id);
CREATE INDEX IF NOT EXISTS idx_recip_email ON email_recipients(email_id);
CREATE INDEX IF NOT EXISTS idx_emails_body_hash ON emails(body_hash);
`
