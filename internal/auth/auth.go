// Package auth signs users up and in, keeps their sessions and merges the
// stored profile onto each session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"

	"github.com/harentsoaR/tabib-api/internal/models"
	"github.com/harentsoaR/tabib-api/internal/store"
)

const minPasswordLength = 6

// Session is a signed-in user: the account identity with the users/{uid}
// profile merged on top.
type Session struct {
	ID          string    `json:"-"`
	Token       string    `json:"token,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt"`
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Name        string    `json:"name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Role        string    `json:"role,omitempty"`
	CreatedAt   int64     `json:"createdAt,omitempty"`
	UpdatedAt   int64     `json:"updatedAt,omitempty"`
}

func (s *Session) merge(u *models.User) {
	if u == nil {
		return
	}
	if u.Email != "" {
		s.Email = u.Email
	}
	s.Name = u.Name
	s.Phone = u.Phone
	s.Role = u.Role
	s.CreatedAt = u.CreatedAt
	s.UpdatedAt = u.UpdatedAt
}

type Options struct {
	PhoneRegion      string
	MaxLoginAttempts int
	SessionTTL       time.Duration
}

type Service struct {
	db       store.Gateway
	accounts AccountStore
	sessions SessionStore
	tokens   *Tokens
	validate *validator.Validate
	opts     Options
	log      zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	nextObs   int
	observers map[string]map[int]func(*Session)
}

func NewService(db store.Gateway, accounts AccountStore, sessions SessionStore, tokens *Tokens, opts Options, log zerolog.Logger) *Service {
	if opts.MaxLoginAttempts <= 0 {
		opts.MaxLoginAttempts = 5
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Service{
		db:        db,
		accounts:  accounts,
		sessions:  sessions,
		tokens:    tokens,
		validate:  validator.New(),
		opts:      opts,
		log:       log.With().Str("component", "auth").Logger(),
		now:       time.Now,
		observers: make(map[string]map[int]func(*Session)),
	}
}

// SignUp creates an account and its users/{uid} profile, then opens a
// session for it.
func (s *Service) SignUp(ctx context.Context, email, password, name, phone string) (*Session, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, newError(CodeInvalidEmail, err)
	}
	if len(password) < minPasswordLength {
		return nil, newError(CodeWeakPassword, nil)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, Classify(fmt.Errorf("hash password: %w", err))
	}
	acct := &Account{
		UID:          NewUID(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  name,
		CreatedAt:    s.now(),
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("sign up failed")
		return nil, Classify(err)
	}

	ts := s.now().UnixMilli()
	profile := models.User{
		UID:       acct.UID,
		Email:     acct.Email,
		Name:      name,
		Phone:     s.normalizePhone(phone),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := s.db.Write(ctx, store.Join("users", acct.UID), profile); err != nil {
		s.log.Error().Err(err).Str("uid", acct.UID).Msg("failed to write user profile")
		return nil, &Error{Code: CodeUnknown, Message: msgProfileNotSaved, Err: err}
	}

	sess, err := s.openSession(ctx, acct)
	if err != nil {
		return nil, Classify(err)
	}
	sess.merge(&profile)
	s.log.Info().Str("uid", acct.UID).Msg("user signed up")
	s.emit(ctx, acct.UID, true)
	return sess, nil
}

// SignIn checks the credentials and returns a session with the stored
// profile merged in.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, newError(CodeInvalidEmail, err)
	}
	key := normalizeEmail(email)

	n, err := s.sessions.Attempts(ctx, key)
	if err != nil {
		return nil, Classify(err)
	}
	if n >= s.opts.MaxLoginAttempts {
		return nil, newError(CodeTooManyRequests, nil)
	}

	acct, err := s.accounts.ByEmail(ctx, email)
	if err != nil {
		return nil, Classify(err)
	}
	if acct.Disabled {
		return nil, newError(CodeUserDisabled, nil)
	}
	if !CheckPasswordHash(password, acct.PasswordHash) {
		if _, err := s.sessions.RecordFailure(ctx, key); err != nil {
			s.log.Warn().Err(err).Msg("failed to record sign in attempt")
		}
		return nil, newError(CodeWrongPassword, nil)
	}
	if err := s.sessions.ResetAttempts(ctx, key); err != nil {
		s.log.Warn().Err(err).Msg("failed to reset sign in attempts")
	}

	sess, err := s.openSession(ctx, acct)
	if err != nil {
		return nil, Classify(err)
	}
	sess.merge(s.profile(ctx, acct.UID))
	s.log.Info().Str("uid", acct.UID).Msg("user signed in")
	s.emit(ctx, acct.UID, true)
	return sess, nil
}

// LogOut revokes the session. A nil session is a no-op.
func (s *Service) LogOut(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return Classify(err)
	}
	s.emit(ctx, sess.UID, false)
	return nil
}

// Authenticate resolves a bearer token to its live session.
func (s *Service) Authenticate(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	uid, err := s.sessions.Lookup(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if uid != claims.UserID {
		return nil, ErrInvalidToken
	}
	acct, err := s.accounts.ByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if acct.Disabled {
		if err := s.sessions.Delete(ctx, claims.ID); err != nil {
			s.log.Warn().Err(err).Str("uid", uid).Msg("failed to revoke session of disabled account")
		}
		return nil, newError(CodeUserDisabled, nil)
	}

	sess := &Session{
		ID:          claims.ID,
		Token:       token,
		ExpiresAt:   claims.ExpiresAt.Time,
		UID:         acct.UID,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
	}
	sess.merge(s.profile(ctx, uid))
	return sess, nil
}

// UpdateUserData merges updates into users/{uid} and stamps updatedAt.
func (s *Service) UpdateUserData(ctx context.Context, uid string, updates map[string]any) error {
	fields := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	if p, ok := fields["phone"].(string); ok {
		fields["phone"] = s.normalizePhone(p)
	}
	fields["updatedAt"] = s.now().UnixMilli()
	if err := s.db.Update(ctx, store.Join("users", uid), fields); err != nil {
		return fmt.Errorf("update user %s: %w", uid, err)
	}
	return nil
}

// SetDisabled blocks or unblocks sign-in for an account.
func (s *Service) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	if err := s.accounts.SetDisabled(ctx, uid, disabled); err != nil {
		return err
	}
	if disabled {
		s.emit(ctx, uid, false)
	}
	return nil
}

// OnAuthStateChange calls fn with a freshly loaded session each time uid
// signs in, and with nil when it signs out.
func (s *Service) OnAuthStateChange(uid string, fn func(*Session)) store.Unsubscribe {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	if s.observers[uid] == nil {
		s.observers[uid] = make(map[int]func(*Session))
	}
	s.observers[uid][id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.observers[uid], id)
			if len(s.observers[uid]) == 0 {
				delete(s.observers, uid)
			}
		})
	}
}

func (s *Service) emit(ctx context.Context, uid string, signedIn bool) {
	s.mu.Lock()
	fns := make([]func(*Session), 0, len(s.observers[uid]))
	for _, fn := range s.observers[uid] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	if len(fns) == 0 {
		return
	}

	var sess *Session
	if signedIn {
		acct, err := s.accounts.ByUID(ctx, uid)
		if err != nil {
			s.log.Warn().Err(err).Str("uid", uid).Msg("auth state: account lookup failed")
			return
		}
		sess = &Session{UID: acct.UID, Email: acct.Email, DisplayName: acct.DisplayName}
		sess.merge(s.profile(ctx, uid))
	}
	for _, fn := range fns {
		s.deliver(fn, sess)
	}
}

func (s *Service) deliver(fn func(*Session), sess *Session) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("auth state callback panicked")
		}
	}()
	var cp *Session
	if sess != nil {
		c := *sess
		cp = &c
	}
	fn(cp)
}

func (s *Service) openSession(ctx context.Context, acct *Account) (*Session, error) {
	id := uuid.NewString()
	token, expiresAt, err := s.tokens.Generate(id, acct.UID, acct.Email)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if err := s.sessions.Save(ctx, id, acct.UID, s.opts.SessionTTL); err != nil {
		return nil, err
	}
	return &Session{
		ID:          id,
		Token:       token,
		ExpiresAt:   expiresAt,
		UID:         acct.UID,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
	}, nil
}

// profile loads users/{uid}. Failures are logged and yield nil so that the
// session still carries the account identity.
func (s *Service) profile(ctx context.Context, uid string) *models.User {
	v, err := s.db.Read(ctx, store.Join("users", uid))
	if err != nil {
		s.log.Warn().Err(err).Str("uid", uid).Msg("failed to read user profile")
		return nil
	}
	u, err := models.DecodeOne[models.User](uid, v)
	if err != nil {
		s.log.Warn().Err(err).Str("uid", uid).Msg("undecodable user profile")
		return nil
	}
	return u
}

// normalizePhone formats parseable numbers as E.164 and keeps anything else
// as typed.
func (s *Service) normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	num, err := phonenumbers.Parse(phone, s.opts.PhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return phone
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// IsAuthError reports whether err is a classified authentication failure
// with the given code.
func IsAuthError(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
