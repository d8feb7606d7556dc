package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/forumgate/forumgate/internal/config"
	"github.com/forumgate/forumgate/internal/model"
)

// keyBytes is the entropy behind a key value. Hex-encoding doubles it, so
// values are 128 characters.
const keyBytes = 64

// CreateKeyRequest carries the admin-supplied fields for a new key. The
// value is always generated server-side.
type CreateKeyRequest struct {
	Name         string `json:"name"`
	AllowedIPs   string `json:"allowed_ips"`
	PermRegister bool   `json:"perm_register"`
	PermLogin    bool   `json:"perm_login"`
	PermManage   bool   `json:"perm_manage"`
}

// KeyService manages API keys on behalf of the admin surface and the CLI.
type KeyService struct {
	store  *config.Store
	logger *slog.Logger
	random io.Reader
}

func NewKeyService(store *config.Store, logger *slog.Logger) *KeyService {
	return &KeyService{
		store:  store,
		logger: logger,
		random: rand.Reader,
	}
}

// WithRandom swaps the entropy source. Tests use it to make generated
// values deterministic.
func (s *KeyService) WithRandom(r io.Reader) *KeyService {
	s.random = r
	return s
}

// Create validates the request, generates the key value, stores the key and
// records the creation in the audit log. Validation failures come back as a
// model.ValidationErrors listing every bad field.
func (s *KeyService) Create(ctx context.Context, req CreateKeyRequest, actor, actorIP string) (model.APIKey, error) {
	value, err := s.generateValue()
	if err != nil {
		return model.APIKey{}, fmt.Errorf("generate key value: %w", err)
	}

	key, err := model.NewBuilder().
		Name(req.Name).
		Value(value).
		AllowedIPs(req.AllowedIPs).
		PermRegister(req.PermRegister).
		PermLogin(req.PermLogin).
		PermManage(req.PermManage).
		Build()
	if err != nil {
		return model.APIKey{}, err
	}

	stored, err := s.store.InsertAPIKey(ctx, key)
	if err != nil {
		return model.APIKey{}, err
	}

	s.audit(ctx, actor, model.AuditKeyCreated, stored.Name, actorIP)
	s.logger.Info("api key created", "key_id", stored.ID, "name", stored.Name, "actor", actor)

	return stored, nil
}

// List returns every key, including the stored values. The list is the only
// place an operator can read a value back after creation.
func (s *KeyService) List(ctx context.Context) ([]model.APIKey, error) {
	return s.store.ListAPIKeys(ctx)
}

// Get loads a single key by id.
func (s *KeyService) Get(ctx context.Context, id int64) (model.APIKey, error) {
	return s.store.LoadAPIKey(ctx, id, "")
}

// Delete removes a key by id. The removal is audited whether or not a row
// existed, so repeated deletes of the same id leave a trace.
func (s *KeyService) Delete(ctx context.Context, id int64, actor, actorIP string) (bool, error) {
	key, err := s.store.LoadAPIKey(ctx, id, "")
	subject := fmt.Sprintf("key %d", id)
	if err == nil {
		subject = key.Name
	}

	removed, err := s.store.DeleteAPIKey(ctx, id)
	if err != nil {
		return false, err
	}

	s.audit(ctx, actor, model.AuditKeyDeleted, subject, actorIP)
	if removed {
		s.logger.Info("api key deleted", "key_id", id, "actor", actor)
	}
	return removed, nil
}

func (s *KeyService) generateValue() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *KeyService) audit(ctx context.Context, actor, action, subject, ip string) {
	err := s.store.AppendAudit(ctx, &model.AuditEntry{
		Actor:   actor,
		Action:  action,
		Subject: subject,
		IP:      ip,
	})
	if err != nil {
		s.logger.Warn("audit append failed", "action", action, "error", err)
	}
}
