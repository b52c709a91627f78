// Package onboarding registers the light client with the hub and manages the
// API key that authenticates every later request.
package onboarding

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"

	"github.com/lumino-network/light-client/internal/app/storage"
	"github.com/lumino-network/light-client/internal/protocol"
	"github.com/lumino-network/light-client/internal/signing"
	"github.com/lumino-network/light-client/pkg/logger"
)

const (
	credentialsPath = "light_clients/matrix/credentials"
	registerPath    = "light_clients/"
)

// ErrNoAPIKey means the hub accepted the registration but returned no key.
var ErrNoAPIKey = errors.New("onboarding: hub returned no api key")

// HubClient is the slice of the hub transport the service needs. SetAPIKey
// arms the authentication header on the shared transport once onboarding
// succeeds.
type HubClient interface {
	Get(ctx context.Context, path string, query url.Values, out interface{}) error
	Post(ctx context.Context, path string, body, out interface{}) error
	SetAPIKey(key string)
}

// Persister snapshots the full application state after a mutation.
type Persister interface {
	Persist(ctx context.Context) error
}

// Deps are the collaborators of the service.
type Deps struct {
	Credentials storage.CredentialStore
	Hub         HubClient
	Signer      signing.Signer
	Persist     Persister
	Log         *logger.Logger
}

// Service owns the onboarding handshake and API key bookkeeping.
type Service struct {
	creds   storage.CredentialStore
	hub     HubClient
	signer  signing.Signer
	persist Persister
	log     *logger.Logger
}

// New builds an onboarding service.
func New(deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.NewDefault("onboarding")
	}
	return &Service{
		creds:   deps.Credentials,
		hub:     deps.Hub,
		signer:  deps.Signer,
		persist: deps.Persist,
		log:     log,
	}
}

type credentialsResponse struct {
	DisplayNameToSign string `json:"display_name_to_sign"`
	PasswordToSign    string `json:"password_to_sign"`
	SeedRetry         string `json:"seed_retry"`
}

type registerRequest struct {
	Address           string `json:"address"`
	SignedPassword    string `json:"signed_password"`
	SignedDisplayName string `json:"signed_display_name"`
	SignedSeedRetry   string `json:"signed_seed_retry"`
	Password          string `json:"password"`
	DisplayName       string `json:"display_name"`
	SeedRetry         string `json:"seed_retry"`
}

type registerResponse struct {
	APIKey string `json:"api_key"`
}

// Onboard fetches the hub's registration challenges for address, signs them
// and exchanges the signatures for an API key. On success the key is stored,
// the hub transport is armed with it and the state is persisted.
func (s *Service) Onboard(ctx context.Context, address string) (string, error) {
	checksummed, err := protocol.ChecksumAddress(address)
	if err != nil {
		return "", err
	}

	var challenges credentialsResponse
	query := url.Values{"address": []string{checksummed}}
	if err := s.hub.Get(ctx, credentialsPath, query, &challenges); err != nil {
		return "", fmt.Errorf("fetch registration challenges: %w", err)
	}

	signedDisplayName, err := s.signText(ctx, challenges.DisplayNameToSign)
	if err != nil {
		return "", fmt.Errorf("sign display name: %w", err)
	}
	signedPassword, err := s.signText(ctx, challenges.PasswordToSign)
	if err != nil {
		return "", fmt.Errorf("sign password: %w", err)
	}
	signedSeedRetry, err := s.signText(ctx, challenges.SeedRetry)
	if err != nil {
		return "", fmt.Errorf("sign seed retry: %w", err)
	}

	req := registerRequest{
		Address:           checksummed,
		SignedPassword:    signedPassword,
		SignedDisplayName: signedDisplayName,
		SignedSeedRetry:   signedSeedRetry,
		Password:          challenges.PasswordToSign,
		DisplayName:       challenges.DisplayNameToSign,
		SeedRetry:         challenges.SeedRetry,
	}
	var res registerResponse
	if err := s.hub.Post(ctx, registerPath, req, &res); err != nil {
		return "", fmt.Errorf("register light client: %w", err)
	}
	if res.APIKey == "" {
		return "", ErrNoAPIKey
	}

	if err := s.creds.SetAddress(ctx, checksummed); err != nil {
		return "", err
	}
	if err := s.creds.SetAPIKey(ctx, res.APIKey); err != nil {
		return "", err
	}
	s.hub.SetAPIKey(res.APIKey)
	s.log.Infof("client %s onboarded", checksummed)

	if err := s.persist.Persist(ctx); err != nil {
		return "", fmt.Errorf("persist after onboarding: %w", err)
	}
	return res.APIKey, nil
}

// SetAPIKey stores a known API key, arms the hub transport and persists. Used
// when the client was onboarded in an earlier run or elsewhere.
func (s *Service) SetAPIKey(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("onboarding: empty api key")
	}
	if err := s.creds.SetAPIKey(ctx, key); err != nil {
		return err
	}
	s.hub.SetAPIKey(key)
	return s.persist.Persist(ctx)
}

// APIKey returns the stored API key.
func (s *Service) APIKey(ctx context.Context) (string, error) {
	return s.creds.APIKey(ctx)
}

func (s *Service) signText(ctx context.Context, text string) (string, error) {
	sig, err := s.signer.Sign(ctx, []byte(text))
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(sig), nil
}
