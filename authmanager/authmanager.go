package authmanager

import (
	"errors"
	"strings"
	"sync"

	"github.com/MicahParks/keyfunc"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"github.com/branchpulse/notifier/config"
)

const oidcURLPart = "/.well-known/openid-configuration"

var ErrFailedToGetOIDCConfiguration = errors.New("failed to get OIDC configuration")

type AuthManager interface {
	GetJWKS() (*keyfunc.JWKS, error)
}

type OpenIDConfiguration struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

type authManager struct {
	configuration *config.Configuration
	restClient    *resty.Client
	jwks          *keyfunc.JWKS
	oidc          *OpenIDConfiguration
	oidcMutex     sync.Mutex
}

func NewAuthManager(configuration *config.Configuration, restClient *resty.Client) AuthManager {
	authenticationManager := &authManager{
		configuration: configuration,
		restClient:    restClient,
	}

	err := authenticationManager.loadJWKS()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load OIDC from the authentication provider")
		return nil
	}

	return authenticationManager
}

func (m *authManager) GetJWKS() (*keyfunc.JWKS, error) {
	if m.jwks == nil {
		if err := m.loadJWKS(); err != nil {
			return nil, err
		}
	}
	return m.jwks, nil
}

func (m *authManager) loadJWKS() error {
	err := m.ensureOIDC()
	if err != nil {
		return err
	}

	m.jwks, err = keyfunc.Get(m.oidc.JwksURI, keyfunc.Options{
		Client:              m.restClient.GetClient(),
		RefreshErrorHandler: m.refreshErrorHandler,
		RefreshUnknownKID:   true,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to get JWKS from the authentication provider")
		return err
	}

	return nil
}

func (m *authManager) ensureOIDC() error {
	m.oidcMutex.Lock()
	defer m.oidcMutex.Unlock()

	if m.oidc != nil {
		return nil
	}

	oidc, err := m.callOIDCEndpoint()
	if err != nil {
		return err
	}
	m.oidc = oidc
	return nil
}

func (m *authManager) callOIDCEndpoint() (*OpenIDConfiguration, error) {
	response, err := m.restClient.R().
		SetHeader("Content-Type", "application/json").
		SetResult(&OpenIDConfiguration{}).
		Get(strings.TrimRight(m.configuration.OIDCBaseURL, "/") + oidcURLPart)

	if err != nil {
		log.Error().Err(err).Msg("Failed to get OIDC configuration")
		return nil, err
	}

	if !response.IsSuccess() {
		log.Error().Msgf("Failed to get OIDC configuration: %v", response.Error())
		return nil, ErrFailedToGetOIDCConfiguration
	}

	return response.Result().(*OpenIDConfiguration), nil
}

func (m *authManager) refreshErrorHandler(err error) {
	log.Error().Err(err).Msg("Failed to refresh JWKS from the authentication provider")
}
