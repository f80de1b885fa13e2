package httpserver

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/and161185/authentic-caller/internal/convert"
	"github.com/and161185/authentic-caller/internal/service"
)

// decode reads a JSON body into dst and validates it; on failure the response is already written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeFail(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// identity builds a service identity from validated request fields.
func identity(w http.ResponseWriter, email, phone string) (service.Identity, bool) {
	p, err := parsePhone(phone)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid phone number")
		return service.Identity{}, false
	}
	return service.Identity{Email: email, Phone: p}, true
}

// remoteIP returns the peer address without its port.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	phone, err := parsePhone(req.Phone)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "invalid phone number")
		return
	}
	c, tok, err := s.auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Phone:    phone,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, envelope{Data: convert.ToContact(c), Token: tok.AccessToken})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, ok := identity(w, req.Email, req.Phone)
	if !ok {
		return
	}
	tok, _, err := s.auth.Login(r.Context(), id, req.Password, remoteIP(r))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, envelope{Data: convert.ToToken(tok), Token: tok.AccessToken})
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, ok := identity(w, req.Email, req.Phone)
	if !ok {
		return
	}
	if err := s.auth.SendOTP(r.Context(), id); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, envelope{Message: "Otp sent successfully"})
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, ok := identity(w, req.Email, req.Phone)
	if !ok {
		return
	}
	if err := s.auth.VerifyOTP(r.Context(), id, req.OTP, remoteIP(r)); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, envelope{Data: "OTP verified successfully."})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, ok := identity(w, req.Email, req.Phone)
	if !ok {
		return
	}
	if err := s.auth.ResetPassword(r.Context(), id, req.Password); err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeOK(w, envelope{Data: "Password successfully reset."})
}
