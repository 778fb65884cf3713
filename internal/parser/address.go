package parser

import (
	netmail "net/mail"
	"regexp"
	"strings"

	"github.com/vasterlake/enron-email-analytics/internal/normalize"
)

// addrSpecPattern extracts bare addr-specs from header values that the
// strict parser rejects, e.g. unquoted "Last, First <a@b.com>" forms from
// legacy directory exports.
var addrSpecPattern = regexp.MustCompile(`[A-Za-z0-9._%+'-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// ParseAddressList splits a raw address header value into ordered
// (name, email) pairs. Emails are lowercased and trimmed; entries without
// a resolvable email are dropped. Order and duplicates are preserved;
// deduplication happens at the storage constraint, not here.
func ParseAddressList(header string) []Address {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	list, err := netmail.ParseAddressList(decodeHeader(header))
	if err != nil {
		return salvageAddresses(header)
	}

	out := make([]Address, 0, len(list))
	for _, a := range list {
		email := strings.ToLower(strings.TrimSpace(a.Address))
		if email == "" {
			continue
		}
		out = append(out, Address{
			Name:  normalize.DisplayName(a.Name, email),
			Email: email,
		})
	}
	return out
}

// salvageAddresses scans a malformed header for addr-spec tokens and
// treats the text preceding each as its display-name candidate.
func salvageAddresses(header string) []Address {
	matches := addrSpecPattern.FindAllStringIndex(header, -1)
	if len(matches) == 0 {
		return nil
	}

	out := make([]Address, 0, len(matches))
	prev := 0
	for _, m := range matches {
		email := strings.ToLower(header[m[0]:m[1]])
		rawName := strings.Trim(header[prev:m[0]], " \t\r\n,;<>")
		prev = m[1]
		out = append(out, Address{
			Name:  normalize.DisplayName(rawName, email),
			Email: email,
		})
	}
	return out
}
