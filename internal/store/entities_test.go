package store

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveDomain_Idempotent tests create-if-absent domain resolution
func TestResolveDomain_Idempotent(t *testing.T) {
	s := SetupTestStore(t)
	b := BeginTestBatch(t, s)

	first, err := b.ResolveDomain("enron.com")
	require.NoError(t, err)
	require.True(t, first.Valid)

	second, err := b.ResolveDomain("enron.com")
	require.NoError(t, err)
	assert.Equal(t, first.Int64, second.Int64)

	other, err := b.ResolveDomain("aol.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.Int64, other.Int64)
}

// TestResolveDomain_EmptyInput tests that empty input creates nothing
func TestResolveDomain_EmptyInput(t *testing.T) {
	s := SetupTestStore(t)
	b := BeginTestBatch(t, s)

	id, err := b.ResolveDomain("")
	require.NoError(t, err)
	assert.False(t, id.Valid)
}

// TestResolvePerson_Idempotent tests that repeated resolution of the same
// address with no name yields the same identity
func TestResolvePerson_Idempotent(t *testing.T) {
	s := SetupTestStore(t)
	b := BeginTestBatch(t, s)

	first, err := b.ResolvePerson("jane.doe@enron.com", "")
	require.NoError(t, err)
	require.True(t, first.Valid)

	second, err := b.ResolvePerson("jane.doe@enron.com", "")
	require.NoError(t, err)
	assert.Equal(t, first.Int64, second.Int64)
}

// TestResolvePerson_MergeMonotonicity tests the display name merge policy:
// quality only improves or stays equal, never regresses
func TestResolvePerson_MergeMonotonicity(t *testing.T) {
	s := SetupTestStore(t)
	b := BeginTestBatch(t, s)

	// First sighting has no name.
	_, err := b.ResolvePerson("jsmith@enron.com", "")
	require.NoError(t, err)

	// A real name fills the empty slot.
	_, err = b.ResolvePerson("jsmith@enron.com", "John Smith")
	require.NoError(t, err)
	require.NoError(t, b.Commit())

	p, err := s.PersonByEmail("jsmith@enron.com")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "John Smith", p.DisplayName.String)

	// A shorter, equally clean candidate does not replace it.
	b2 := BeginTestBatch(t, s)
	_, err = b2.ResolvePerson("jsmith@enron.com", "J Smith")
	require.NoError(t, err)
	require.NoError(t, b2.Commit())

	p, err = s.PersonByEmail("jsmith@enron.com")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", p.DisplayName.String)

	// A strictly longer candidate wins.
	b3 := BeginTestBatch(t, s)
	_, err = b3.ResolvePerson("jsmith@enron.com", "John Q. Smith Jr")
	require.NoError(t, err)
	require.NoError(t, b3.Commit())

	p, err = s.PersonByEmail("jsmith@enron.com")
	require.NoError(t, err)
	assert.Equal(t, "John Q. Smith Jr", p.DisplayName.String)
}

// TestResolvePerson_ReplacesCorruptedStoredName tests that corruption
// markers in the stored name always yield to a clean candidate
func TestResolvePerson_ReplacesCorruptedStoredName(t *testing.T) {
	s := SetupTestStore(t)

	// Seed a corrupted name directly; ResolvePerson would never store one.
	_, err := s.db.Exec(`INSERT INTO persons (email, display_name) VALUES (?, ?)`,
		"kay.mann@enron.com", "Mann Kay /O=ENRON/CN=KMANN leftover junk text")
	require.NoError(t, err)

	b := BeginTestBatch(t, s)
	_, err = b.ResolvePerson("kay.mann@enron.com", "Kay Mann")
	require.NoError(t, err)
	require.NoError(t, b.Commit())

	p, err := s.PersonByEmail("kay.mann@enron.com")
	require.NoError(t, err)
	assert.Equal(t, "Kay Mann", p.DisplayName.String)
}

// TestResolvePerson_DiscardsInvalidCandidates tests that structurally
// invalid candidate names are treated as absent
func TestResolvePerson_DiscardsInvalidCandidates(t *testing.T) {
	s := SetupTestStore(t)
	b := BeginTestBatch(t, s)

	_, err := b.ResolvePerson("a@x.com", "Somebody <a@x.com>")
	require.NoError(t, err)
	_, err = b.ResolvePerson("b@x.com", "/O=ENRON/OU=NA/CN=RECIPIENTS/CN=B")
	require.NoError(t, err)
	require.NoError(t, b.Commit())

	for _, email := range []string{"a@x.com", "b@x.com"} {
		p, err := s.PersonByEmail(email)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.False(t, p.DisplayName.Valid, "candidate for %s should have been discarded", email)
	}
}

// TestResolvePerson_NormalizesEmail tests lowercasing and trimming of the
// unique key
func TestResolvePerson_NormalizesEmail(t *testing.T) {
	s := SetupTestStore(t)
	b := BeginTestBatch(t, s)

	first, err := b.ResolvePerson("  JDoe@Enron.COM ", "")
	require.NoError(t, err)
	second, err := b.ResolvePerson("jdoe@enron.com", "")
	require.NoError(t, err)
	assert.Equal(t, first.Int64, second.Int64)

	none, err := b.ResolvePerson("", "whatever")
	require.NoError(t, err)
	assert.False(t, none.Valid)
}

// TestInsertEmail_DuplicateIsNoOp tests insert-or-ignore on the identity key
func TestInsertEmail_DuplicateIsNoOp(t *testing.T) {
	s := SetupTestStore(t)
	b := BeginTestBatch(t, s)

	row := &EmailRow{
		MessageID: "<m1@enron.com>",
		Subject:   "Contract",
		Body:      "see attached",
		BodyHash:  BodyHash("see attached"),
	}

	id1, created, err := b.InsertEmail(row)
	require.NoError(t, err)
	assert.True(t, created)

	id2, created, err := b.InsertEmail(row)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)
	require.NoError(t, b.Commit())

	counts, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Emails)
}

// TestInsertRecipient_DedupPerKind tests that duplicate links collapse but
// distinct kinds produce one link each
func TestInsertRecipient_DedupPerKind(t *testing.T) {
	s := SetupTestStore(t)
	b := BeginTestBatch(t, s)

	pid, err := b.ResolvePerson("bob@x.com", "Bob")
	require.NoError(t, err)
	did, err := b.ResolveDomain("x.com")
	require.NoError(t, err)

	emailID, _, err := b.InsertEmail(&EmailRow{MessageID: "<m2@x.com>", Body: "hi", BodyHash: BodyHash("hi")})
	require.NoError(t, err)

	// Same person twice under "to" collapses to one link.
	require.NoError(t, b.InsertRecipient(emailID, pid.Int64, did, KindTo))
	require.NoError(t, b.InsertRecipient(emailID, pid.Int64, did, KindTo))
	// The same person under "cc" is a separate link.
	require.NoError(t, b.InsertRecipient(emailID, pid.Int64, did, KindCc))
	require.NoError(t, b.Commit())

	kinds, err := s.RecipientKinds(emailID, pid.Int64)
	require.NoError(t, err)
	assert.Equal(t, []string{"cc", "to"}, kinds)
}

// TestIdentityKey tests the dedup key choice between Message-ID and hash
func TestIdentityKey(t *testing.T) {
	hash := BodyHash("some body")
	assert.Equal(t, "<id@x.com>", IdentityKey("<id@x.com>", hash))
	assert.Equal(t, "<id@x.com>", IdentityKey("  <id@x.com>  ", hash))
	assert.Equal(t, hash, IdentityKey("", hash))
	assert.Equal(t, hash, IdentityKey("   ", hash))
}

// TestBodyHash tests hash stability and sensitivity
func TestBodyHash(t *testing.T) {
	assert.Equal(t, BodyHash("abc"), BodyHash("abc"))
	assert.NotEqual(t, BodyHash("abc"), BodyHash("abd"))
	assert.Len(t, BodyHash(""), 64)
}

// TestInsertEmail_NullableFields tests that sender and date fields accept null
func TestInsertEmail_NullableFields(t *testing.T) {
	s := SetupTestStore(t)
	b := BeginTestBatch(t, s)

	id, created, err := b.InsertEmail(&EmailRow{
		MessageID: BodyHash("body with no headers"),
		Body:      "body with no headers",
		BodyHash:  BodyHash("body with no headers"),
	})
	require.NoError(t, err)
	assert.True(t, created)
	require.NoError(t, b.Commit())

	var sent sql.NullString
	require.NoError(t, s.db.Get(&sent, `SELECT sent_utc FROM emails WHERE email_id = ?`, id))
	assert.False(t, sent.Valid)
}
