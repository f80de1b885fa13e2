package httpserver

import (
	"context"
	"io"
	"time"

	"github.com/and161185/authentic-caller/internal/errs"
	"github.com/and161185/authentic-caller/internal/model"
	"github.com/and161185/authentic-caller/internal/service"
)

const goodToken = "good-token"

type fakeAuth struct {
	err error

	gotRegister service.RegisterInput
	gotID       service.Identity
	gotPassword string
	gotCode     string
	gotIP       string
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) Register(_ context.Context, in service.RegisterInput) (model.Contact, model.Tokens, error) {
	f.gotRegister = in
	if f.err != nil {
		return model.Contact{}, model.Tokens{}, f.err
	}
	return model.Contact{ID: 1, Name: in.Name, Phone: in.Phone, Email: in.Email, IsRegistered: true},
		model.Tokens{AccessToken: "tok-1", ExpiresAt: time.Unix(1700000000, 0)}, nil
}

func (f *fakeAuth) Login(_ context.Context, id service.Identity, password, ip string) (model.Tokens, model.Contact, error) {
	f.gotID, f.gotPassword, f.gotIP = id, password, ip
	if f.err != nil {
		return model.Tokens{}, model.Contact{}, f.err
	}
	return model.Tokens{AccessToken: "tok-2", ExpiresAt: time.Unix(1700000000, 0)}, model.Contact{ID: 1}, nil
}

func (f *fakeAuth) SendOTP(_ context.Context, id service.Identity) error {
	f.gotID = id
	return f.err
}

func (f *fakeAuth) VerifyOTP(_ context.Context, id service.Identity, code, ip string) error {
	f.gotID, f.gotCode, f.gotIP = id, code, ip
	return f.err
}

func (f *fakeAuth) ResetPassword(_ context.Context, id service.Identity, password string) error {
	f.gotID, f.gotPassword = id, password
	return f.err
}

func (f *fakeAuth) Authenticate(token string) (int64, error) {
	if token != goodToken {
		return 0, errs.ErrUnauthenticated
	}
	return 7, nil
}

type fakeContacts struct {
	err   error
	views []model.PublicView

	gotQuery     string
	gotRequester int64
	gotID        int64
	gotCSV       string
	panicOn      bool
}

var _ service.ContactService = (*fakeContacts)(nil)

func (f *fakeContacts) Search(_ context.Context, query string, requesterID int64) ([]model.PublicView, error) {
	if f.panicOn {
		panic("boom")
	}
	f.gotQuery, f.gotRequester = query, requesterID
	return f.views, f.err
}

func (f *fakeContacts) GetByID(_ context.Context, id, requesterID int64) (model.PublicView, error) {
	f.gotID, f.gotRequester = id, requesterID
	if f.err != nil {
		return model.PublicView{}, f.err
	}
	return model.PublicView{ID: id, Name: "Bob", Phone: 5551112222}, nil
}

func (f *fakeContacts) ReportSpam(_ context.Context, id int64) (int64, error) {
	f.gotID = id
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func (f *fakeContacts) UploadContacts(_ context.Context, ownerID int64, csv io.Reader) ([]model.Contact, error) {
	f.gotRequester = ownerID
	b, _ := io.ReadAll(csv)
	f.gotCSV = string(b)
	if f.err != nil {
		return nil, f.err
	}
	return []model.Contact{{ID: 10, Name: "Bob", Phone: 5551112222, OwnerID: &ownerID}}, nil
}
