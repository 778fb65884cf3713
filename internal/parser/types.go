package parser

// Envelope holds the structured header fields and extracted body of one
// raw message. Address headers keep their raw values; splitting and
// normalization happen in ParseAddressList.
type Envelope struct {
	MessageID  string
	From       string
	To         string
	Cc         string
	Bcc        string
	Subject    string
	InReplyTo  string
	References string

	// Alternate directory-export headers, used as sender/recipient
	// fallbacks when the primary headers are unusable.
	XFrom string
	XTo   string
	XCc   string
	XBcc  string

	Body string

	// Date is nil when the Date header is missing or unparsable.
	Date *SentDate
}

// SentDate is the Date header converted to UTC and decomposed for
// calendar-bucketed queries.
type SentDate struct {
	UTC   string // ISO-8601, YYYY-MM-DDTHH:MM:SSZ
	Year  int
	Month int
	Day   int
	Hour  int
}

// Address is one parsed mailbox from an address header.
type Address struct {
	Name  string // normalized display name, "" when none could be derived
	Email string // lowercased, trimmed address
}
