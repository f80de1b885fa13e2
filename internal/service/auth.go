// Package service contains application services for authentication and the contact directory.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	pkgcrypto "github.com/and161185/authentic-caller/internal/crypto"
	"github.com/and161185/authentic-caller/internal/errs"
	"github.com/and161185/authentic-caller/internal/limiter"
	"github.com/and161185/authentic-caller/internal/metrics"
	"github.com/and161185/authentic-caller/internal/model"
	"github.com/and161185/authentic-caller/internal/notify"
	"github.com/and161185/authentic-caller/internal/repository"
)

// Identity names a registered account by email or phone.
// When both are set the phone selects the account and the email must belong to it.
type Identity struct {
	Email string
	Phone int64
}

// Empty reports whether neither identifier is set.
func (id Identity) Empty() bool { return id.Email == "" && id.Phone == 0 }

// Target is the one-time code slot for the identity: the email when given, else the phone.
func (id Identity) Target() string {
	if id.Email != "" {
		return "email:" + strings.ToLower(id.Email)
	}
	return "phone:" + strconv.FormatInt(id.Phone, 10)
}

func (id Identity) login() string {
	if id.Phone != 0 {
		return "phone:" + strconv.FormatInt(id.Phone, 10)
	}
	return "email:" + strings.ToLower(id.Email)
}

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	Name     string
	Phone    int64
	Email    string
	Password string
}

// AuthService defines account and credential operations.
type AuthService interface {
	// Register creates a self-registered account and signs the caller in.
	Register(ctx context.Context, in RegisterInput) (model.Contact, model.Tokens, error)
	// Login applies rate-limiting and authenticates the account.
	Login(ctx context.Context, id Identity, password, ip string) (model.Tokens, model.Contact, error)
	// SendOTP issues a password reset code, replacing any earlier one for the same target.
	SendOTP(ctx context.Context, id Identity) error
	// VerifyOTP checks a code against the current challenge and marks it verified.
	VerifyOTP(ctx context.Context, id Identity, code, ip string) error
	// ResetPassword sets a new password once the target holds a verified code.
	ResetPassword(ctx context.Context, id Identity, password string) error
	// Authenticate validates an access token and returns the account id it was issued to.
	Authenticate(token string) (int64, error)
}

// AuthConfig holds token and code lifetimes.
type AuthConfig struct {
	SignKey   []byte
	AccessTTL time.Duration
	OTPTTL    time.Duration
	// OTPMaxAttempts wrong codes, from any address, discard the challenge.
	OTPMaxAttempts int
}

// Notifiers routes one-time codes by channel.
type Notifiers struct {
	Email notify.Sender
	Phone notify.Sender
}

type AuthServiceImpl struct {
	contacts   repository.ContactRepository
	challenges repository.ChallengeStore
	lim        limiter.Limiter
	notifiers  Notifiers
	cfg        AuthConfig
	log        *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	contacts repository.ContactRepository,
	challenges repository.ChallengeStore,
	lim limiter.Limiter,
	notifiers Notifiers,
	cfg AuthConfig,
	log *zap.Logger,
	m *metrics.Metrics,
) *AuthServiceImpl {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 10 * time.Minute
	}
	if cfg.OTPMaxAttempts <= 0 {
		cfg.OTPMaxAttempts = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{
		contacts:   contacts,
		challenges: challenges,
		lim:        lim,
		notifiers:  notifiers,
		cfg:        cfg,
		log:        log,
		metrics:    m,
		now:        time.Now,
	}
}

// Register creates a registered record; a phone or email already registered is a conflict.
func (s *AuthServiceImpl) Register(ctx context.Context, in RegisterInput) (model.Contact, model.Tokens, error) {
	if strings.TrimSpace(in.Name) == "" || in.Phone <= 0 || in.Password == "" {
		return model.Contact{}, model.Tokens{}, fmt.Errorf("name, phone and password are required: %w", errs.ErrInvalidArgument)
	}

	if _, err := s.contacts.FindByPhone(ctx, in.Phone, true); err == nil {
		return model.Contact{}, model.Tokens{}, fmt.Errorf("phone already registered: %w", errs.ErrConflict)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.Contact{}, model.Tokens{}, err
	}
	if in.Email != "" {
		if _, err := s.contacts.FindRegisteredByEmail(ctx, in.Email); err == nil {
			return model.Contact{}, model.Tokens{}, fmt.Errorf("email already registered: %w", errs.ErrConflict)
		} else if !errors.Is(err, errs.ErrNotFound) {
			return model.Contact{}, model.Tokens{}, err
		}
	}

	hash, err := pkgcrypto.HashPassword(in.Password)
	if err != nil {
		return model.Contact{}, model.Tokens{}, err
	}
	c := &model.Contact{
		Name:         strings.TrimSpace(in.Name),
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: hash,
		IsRegistered: true,
	}
	if err := s.contacts.CreateRegistered(ctx, c); err != nil {
		return model.Contact{}, model.Tokens{}, err
	}
	s.metrics.IncRegistration()

	tokens, err := s.issueAccessToken(c.ID)
	if err != nil {
		return model.Contact{}, model.Tokens{}, err
	}
	c.PasswordHash = ""
	return *c, tokens, nil
}

// Login authenticates with rate limiting by (identifier, ip).
func (s *AuthServiceImpl) Login(ctx context.Context, id Identity, password, ip string) (model.Tokens, model.Contact, error) {
	if id.Empty() {
		return model.Tokens{}, model.Contact{}, fmt.Errorf("email or phone is required: %w", errs.ErrInvalidArgument)
	}
	subject := limiter.Subject("login", id.login())
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, subject, ipHash)
	if err != nil {
		return model.Tokens{}, model.Contact{}, err
	}
	if !allowed {
		return model.Tokens{}, model.Contact{}, errs.ErrRateLimited
	}

	c, err := s.lookup(ctx, id)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.Tokens{}, model.Contact{}, err
	}
	if err != nil || !pkgcrypto.VerifyPassword(password, c.PasswordHash) {
		// Record failure; if threshold reached, return rate-limited.
		if blocked, _, ferr := s.lim.Failure(ctx, subject, ipHash); ferr == nil && blocked {
			return model.Tokens{}, model.Contact{}, errs.ErrRateLimited
		}
		if err != nil {
			return model.Tokens{}, model.Contact{}, fmt.Errorf("account does not exist: %w", errs.ErrNotFound)
		}
		return model.Tokens{}, model.Contact{}, fmt.Errorf("password is incorrect: %w", errs.ErrUnauthenticated)
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, subject, ipHash)

	tokens, err := s.issueAccessToken(c.ID)
	if err != nil {
		return model.Tokens{}, model.Contact{}, err
	}
	c.PasswordHash = ""
	return tokens, *c, nil
}

// SendOTP stores a fresh code for the identity's target and delivers it.
func (s *AuthServiceImpl) SendOTP(ctx context.Context, id Identity) error {
	if id.Empty() {
		return fmt.Errorf("email or phone is required: %w", errs.ErrInvalidArgument)
	}
	if _, err := s.lookup(ctx, id); err != nil {
		return err
	}

	code, err := pkgcrypto.GenerateOTP()
	if err != nil {
		return err
	}
	chID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	now := s.now()
	ch := model.OTPChallenge{
		ID:        chID,
		Target:    id.Target(),
		CodeHash:  pkgcrypto.HashOTP(chID.Bytes(), code),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.OTPTTL),
	}
	if err := s.challenges.Put(ctx, ch); err != nil {
		return err
	}
	s.metrics.IncOTPIssued()

	sender, to := s.notifiers.Phone, strconv.FormatInt(id.Phone, 10)
	channel := "phone"
	if id.Email != "" {
		sender, to, channel = s.notifiers.Email, id.Email, "email"
	}
	if sender == nil {
		return fmt.Errorf("no %s notifier configured", channel)
	}
	if err := sender.Send(ctx, notify.OTPMessage(to, code, s.cfg.OTPTTL)); err != nil {
		return err
	}
	s.log.Info("otp issued", zap.String("channel", channel), zap.String("challenge", chID.String()))
	return nil
}

// VerifyOTP marks the current challenge verified when code matches.
func (s *AuthServiceImpl) VerifyOTP(ctx context.Context, id Identity, code, ip string) error {
	if id.Empty() {
		return fmt.Errorf("email or phone is required: %w", errs.ErrInvalidArgument)
	}
	subject := limiter.Subject("otp", id.Target())
	ipHash := limiter.HashIP(ip)

	allowed, _, err := s.lim.Allow(ctx, subject, ipHash)
	if err != nil {
		return err
	}
	if !allowed {
		return errs.ErrRateLimited
	}

	ch, err := s.challenges.Get(ctx, id.Target())
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("send otp first: %w", errs.ErrNotFound)
		}
		return err
	}
	if ch.Expired(s.now()) {
		return fmt.Errorf("otp expired, send otp first: %w", errs.ErrNotFound)
	}
	if !pkgcrypto.VerifyOTP(ch.ID.Bytes(), code, ch.CodeHash) {
		n, err := s.challenges.RecordFailure(ctx, *ch)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		if n >= s.cfg.OTPMaxAttempts {
			if err := s.challenges.Consume(ctx, *ch); err != nil {
				return err
			}
			s.log.Warn("otp challenge discarded", zap.String("challenge", ch.ID.String()), zap.Int("failures", n))
			return fmt.Errorf("too many incorrect codes, send otp first: %w", errs.ErrRateLimited)
		}
		if blocked, _, ferr := s.lim.Failure(ctx, subject, ipHash); ferr == nil && blocked {
			return errs.ErrRateLimited
		}
		return fmt.Errorf("incorrect code, please re-enter: %w", errs.ErrOTPMismatch)
	}
	if err := s.challenges.MarkVerified(ctx, *ch); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("otp was replaced, send otp first: %w", errs.ErrNotFound)
		}
		return err
	}
	_ = s.lim.Success(ctx, subject, ipHash)
	return nil
}

// ResetPassword replaces the password of the identity's account and consumes the verified code.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, id Identity, password string) error {
	if id.Empty() {
		return fmt.Errorf("email or phone is required: %w", errs.ErrInvalidArgument)
	}
	if password == "" {
		return fmt.Errorf("password is required: %w", errs.ErrInvalidArgument)
	}
	c, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	ch, err := s.challenges.Get(ctx, id.Target())
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrOTPRequired
		}
		return err
	}
	if !ch.Verified() || ch.Expired(s.now()) {
		return errs.ErrOTPRequired
	}

	if pkgcrypto.VerifyPassword(password, c.PasswordHash) {
		return errs.ErrSamePassword
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.contacts.UpdatePasswordHash(ctx, c.ID, hash); err != nil {
		return err
	}
	return s.challenges.Consume(ctx, *ch)
}

// Authenticate verifies an HS256 access token and returns its subject as an account id.
func (s *AuthServiceImpl) Authenticate(token string) (int64, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.cfg.SignKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("invalid token: %w", errs.ErrUnauthenticated)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad subject: %w", errs.ErrUnauthenticated)
	}
	return id, nil
}

// lookup resolves id to its registered account.
func (s *AuthServiceImpl) lookup(ctx context.Context, id Identity) (*model.Contact, error) {
	var (
		c   *model.Contact
		err error
	)
	if id.Phone != 0 {
		c, err = s.contacts.FindByPhone(ctx, id.Phone, true)
	} else {
		c, err = s.contacts.FindRegisteredByEmail(ctx, id.Email)
	}
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("user does not exist: %w", errs.ErrNotFound)
		}
		return nil, err
	}
	if id.Phone != 0 && id.Email != "" && !strings.EqualFold(c.Email, id.Email) {
		return nil, fmt.Errorf("user does not exist: %w", errs.ErrNotFound)
	}
	return c, nil
}

// issueAccessToken creates a signed HS256 JWT for the given account.
func (s *AuthServiceImpl) issueAccessToken(contactID int64) (model.Tokens, error) {
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Tokens{}, err
	}
	now := s.now()
	exp := now.Add(s.cfg.AccessTTL)
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Subject:   strconv.FormatInt(contactID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.cfg.SignKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}
