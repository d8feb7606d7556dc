package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/forumgate/forumgate/internal/config"
	"github.com/forumgate/forumgate/internal/forum"
)

// CodeError carries machine-readable error codes back to the gated
// endpoints, which localize them into the errors map of the response body.
type CodeError struct {
	Codes []string
}

func (e *CodeError) Error() string {
	return strings.Join(e.Codes, ", ")
}

func codeErr(codes ...string) *CodeError {
	return &CodeError{Codes: codes}
}

// RegisterRequest is the payload of a registration call.
type RegisterRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	IPAddress string `json:"ip_address"`
	IsCoppa   bool   `json:"is_coppa"`
}

// RegisterResult reports the created account.
type RegisterResult struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginRequest is the payload of a login call.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult reports the authenticated account.
type LoginResult struct {
	UserID int64 `json:"user_id"`
}

// controlOrAngle rejects characters that have no business in a username:
// control characters and the angle brackets the board strips anyway.
var controlOrAngle = regexp.MustCompile("[\x00-\x1f<>\"]")

// UserService creates and authenticates board accounts on behalf of the
// gated endpoints.
type UserService struct {
	forum  forum.Forum
	mailer forum.Mailer
	cfg    config.RegisterConfig
	logger *slog.Logger
	random io.Reader
}

func NewUserService(f forum.Forum, mailer forum.Mailer, cfg config.RegisterConfig, logger *slog.Logger) *UserService {
	return &UserService{
		forum:  f,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
		random: rand.Reader,
	}
}

// WithRandom swaps the entropy source behind activation keys.
func (s *UserService) WithRandom(r io.Reader) *UserService {
	s.random = r
	return s
}

// Register validates the request, creates an inactive account in the board
// database and hands the activation key to the mailer. Validation problems
// come back as a *CodeError listing every failed check, so the caller sees
// all problems in one round trip.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	codes := s.validateUsername(ctx, username)
	codes = append(codes, s.validatePassword(req.Password)...)
	codes = append(codes, s.validateEmail(ctx, email)...)
	if len(codes) > 0 {
		return nil, &CodeError{Codes: dedupe(codes)}
	}

	groupName := forum.GroupRegistered
	if req.IsCoppa {
		groupName = forum.GroupRegisteredCOPPA
	}
	groupID, err := s.forum.SpecialGroupID(ctx, groupName)
	if err != nil {
		return nil, fmt.Errorf("resolve group: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	actKey, err := s.activationKey()
	if err != nil {
		return nil, fmt.Errorf("generate activation key: %w", err)
	}

	now := time.Now()
	u := &forum.User{
		Username:       username,
		UsernameClean:  cleanUsername(username),
		PasswordHash:   string(hash),
		Email:          email,
		GroupID:        groupID,
		Type:           forum.UserInactive,
		IP:             req.IPAddress,
		RegDate:        now.Unix(),
		ActKey:         actKey,
		InactiveReason: forum.InactiveRegister,
		InactiveTime:   now.Unix(),
		Lang:           "en",
		Timezone:       "UTC",
	}

	if err := s.forum.CreateUser(ctx, u); err != nil {
		s.logger.Error("user creation failed", "username", username, "error", err)
		return nil, codeErr("REGISTRATION_FAILURE")
	}

	if err := s.mailer.SendActivation(ctx, email, username, actKey); err != nil {
		// The account exists; the board can re-send activation later.
		s.logger.Warn("activation mail failed", "username", username, "error", err)
	}

	s.logger.Info("user registered", "user_id", u.ID, "username", username, "coppa", req.IsCoppa)

	return &RegisterResult{UserID: u.ID, Username: username, Email: email}, nil
}

// Login authenticates a board account. Failures come back as a *CodeError
// with a single code; the attempt counter follows the board's semantics, so
// an account under brute force locks out through LOGIN_ERROR_ATTEMPTS.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, codeErr("LOGIN_INCORRECT_CREDENTIALS")
	}

	u, err := s.forum.UserByUsername(ctx, cleanUsername(username))
	if err != nil {
		if errors.Is(err, forum.ErrNotFound) {
			return nil, codeErr("LOGIN_INCORRECT_CREDENTIALS")
		}
		return nil, err
	}

	if s.cfg.MaxLoginAttempts > 0 && u.LoginAttempts >= s.cfg.MaxLoginAttempts {
		return nil, codeErr("LOGIN_ERROR_ATTEMPTS")
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		if err := s.forum.IncrementLoginAttempts(ctx, u.ID); err != nil {
			s.logger.Warn("attempt counter update failed", "user_id", u.ID, "error", err)
		}
		return nil, codeErr("LOGIN_INCORRECT_CREDENTIALS")
	}

	switch u.Type {
	case forum.UserInactive:
		return nil, codeErr("LOGIN_INACTIVE_ACCOUNT")
	case forum.UserIgnore:
		return nil, codeErr("LOGIN_UNSUPPORTED_STATUS")
	}

	if err := s.forum.ResetLoginAttempts(ctx, u.ID, time.Now()); err != nil {
		s.logger.Warn("attempt counter reset failed", "user_id", u.ID, "error", err)
	}

	s.logger.Info("user logged in", "user_id", u.ID, "username", username)

	return &LoginResult{UserID: u.ID}, nil
}

func (s *UserService) validateUsername(ctx context.Context, username string) []string {
	if username == "" {
		return []string{"USERNAME_REQUIRED"}
	}

	var codes []string
	n := utf8.RuneCountInString(username)
	if n < s.cfg.MinUsernameChars {
		codes = append(codes, "USERNAME_TOO_SHORT")
	}
	if n > s.cfg.MaxUsernameChars {
		codes = append(codes, "USERNAME_TOO_LONG")
	}
	if controlOrAngle.MatchString(username) {
		codes = append(codes, "USERNAME_INVALID_CHARS")
	}

	if len(codes) == 0 {
		taken, err := s.forum.UsernameExists(ctx, cleanUsername(username))
		if err != nil {
			s.logger.Error("username check failed", "error", err)
			codes = append(codes, "REGISTRATION_FAILURE")
		} else if taken {
			codes = append(codes, "USERNAME_TAKEN")
		}
	}
	return codes
}

func (s *UserService) validatePassword(password string) []string {
	if password == "" {
		return []string{"PASSWORD_REQUIRED"}
	}

	var codes []string
	n := utf8.RuneCountInString(password)
	if n < s.cfg.MinPasswordChars {
		codes = append(codes, "PASSWORD_TOO_SHORT")
	}
	if n > s.cfg.MaxPasswordChars {
		codes = append(codes, "PASSWORD_TOO_LONG")
	}
	return codes
}

// Email bounds follow the board's fixed 6..60 character rule.
const (
	minEmailChars = 6
	maxEmailChars = 60
)

func (s *UserService) validateEmail(ctx context.Context, email string) []string {
	if email == "" {
		return []string{"EMAIL_REQUIRED"}
	}

	var codes []string
	n := utf8.RuneCountInString(email)
	if n < minEmailChars {
		codes = append(codes, "EMAIL_TOO_SHORT")
	}
	if n > maxEmailChars {
		codes = append(codes, "EMAIL_TOO_LONG")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		codes = append(codes, "EMAIL_INVALID")
	}

	if len(codes) == 0 {
		taken, err := s.forum.EmailExists(ctx, email)
		if err != nil {
			s.logger.Error("email check failed", "error", err)
			codes = append(codes, "REGISTRATION_FAILURE")
		} else if taken {
			codes = append(codes, "EMAIL_TAKEN")
		}
	}
	return codes
}

// cleanUsername folds a username the way the board does for its
// username_clean column: lower-cased with runs of whitespace collapsed.
func cleanUsername(username string) string {
	return strings.ToLower(strings.Join(strings.Fields(username), " "))
}

// actKeyChars matches the board's activation key alphabet.
const actKeyChars = "abcdefghijklmnopqrstuvwxyz0123456789"

// activationKey generates a random 6 to 10 character activation key.
func (s *UserService) activationKey() (string, error) {
	nBig, err := randInt(s.random, 5)
	if err != nil {
		return "", err
	}
	length := 6 + int(nBig)

	key := make([]byte, length)
	for i := range key {
		idx, err := randInt(s.random, int64(len(actKeyChars)))
		if err != nil {
			return "", err
		}
		key[i] = actKeyChars[idx]
	}
	return string(key), nil
}

func randInt(r io.Reader, max int64) (int64, error) {
	n, err := rand.Int(r, big.NewInt(max))
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}

func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := codes[:0]
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
