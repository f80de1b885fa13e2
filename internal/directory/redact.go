// Package directory resolves, ranks and redacts contact directory records and
// ingests uploaded address books into the directory.
package directory

import "github.com/and161185/authentic-caller/internal/model"

// Redact projects c onto its public view. The password hash is never carried over;
// the email is kept only for a registered record the requester has in their own
// address book (inAddressBook).
func Redact(c model.Contact, inAddressBook bool) model.PublicView {
	v := model.PublicView{
		ID:        c.ID,
		Name:      c.Name,
		Phone:     c.Phone,
		SpamCount: c.SpamCount,
	}
	if c.IsRegistered && inAddressBook {
		v.Email = c.Email
	}
	return v
}
