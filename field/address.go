package field

import "net/mail"

// Address is a parsed RFC 5322 mailbox: a display name plus an address.
// It mirrors net/mail.Address; kept as its own type so callers don't need
// to import net/mail to use Field.Addresses.
type Address struct {
	Name    string
	Address string
}

// Addresses parses the field body as a comma-separated address list (for
// To/Cc/Bcc/From/Reply-To/Sender and friends). Malformed entries are
// skipped rather than failing the whole field, since address headers in
// the wild are frequently slightly invalid.
func (f Field) Addresses() []Address {
	list, err := mail.ParseAddressList(f.fullAddressBody())
	if err != nil {
		// Fall back to a best-effort split so callers still get something
		// for headers mail.ParseAddressList rejects outright.
		return parseAddressesLoose(f.fullAddressBody())
	}
	out := make([]Address, 0, len(list))
	for _, a := range list {
		out = append(out, Address{Name: a.Name, Address: a.Address})
	}
	return out
}

func (f Field) fullAddressBody() string {
	// Comment is not part of an address list for these fields; only body
	// is meaningful (address fields are not split on ";").
	return f.body
}

func parseAddressesLoose(s string) []Address {
	var out []Address
	for _, part := range splitTopLevel(s, ',') {
		part = StripCFWS(part)
		if part == "" {
			continue
		}
		if a, err := mail.ParseAddress(part); err == nil {
			out = append(out, Address{Name: a.Name, Address: a.Address})
		}
	}
	return out
}
