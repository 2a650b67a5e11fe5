package onenote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const DefaultTenant = "consumers"

// DeviceState tracks the device-code exchange.
type DeviceState int

const (
	StateIdle DeviceState = iota
	StateInitiated
	StatePending
	StateGranted
	StateDenied
	StateExpired
	StateFailed
)

func (s DeviceState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitiated:
		return "initiated"
	case StatePending:
		return "pending"
	case StateGranted:
		return "granted"
	case StateDenied:
		return "denied"
	case StateExpired:
		return "expired"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("DeviceState(%d)", int(s))
	}
}

type AuthService struct {
	clientID   string
	tenant     string
	scopes     []string
	endpoint   oauth2.Endpoint
	httpClient *http.Client
	prompt     func(DeviceCode)
	logger     *zap.Logger

	mu    sync.Mutex
	token *oauth2.Token
	// state is read without mu so a prompter can observe it mid-flow.
	state atomic.Int32
}

type AuthOption func(*AuthService)

// WithEndpoint replaces the Azure AD endpoint, mainly for tests.
func WithEndpoint(endpoint oauth2.Endpoint) AuthOption {
	return func(a *AuthService) {
		a.endpoint = endpoint
	}
}

// WithPrompter receives the code the operator has to enter.
func WithPrompter(prompt func(DeviceCode)) AuthOption {
	return func(a *AuthService) {
		a.prompt = prompt
	}
}

func WithAuthLogger(logger *zap.Logger) AuthOption {
	return func(a *AuthService) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithAuthHTTPClient(client *http.Client) AuthOption {
	return func(a *AuthService) {
		a.httpClient = client
	}
}

func NewAuthService(clientID, tenant string, scopes []string, opts ...AuthOption) *AuthService {
	if tenant == "" {
		tenant = DefaultTenant
	}

	endpoint := microsoft.AzureADEndpoint(tenant)
	endpoint.DeviceAuthURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/devicecode", tenant)
	// Public client: no secret, client_id travels in the form body.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	a := &AuthService{
		clientID: clientID,
		tenant:   tenant,
		scopes:   scopes,
		endpoint: endpoint,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *AuthService) State() DeviceState {
	return DeviceState(a.state.Load())
}

func (a *AuthService) setState(s DeviceState) {
	a.state.Store(int32(s))
}

// Token returns the cached token while it is valid, otherwise it runs the
// device-code flow and blocks until the provider grants or refuses it.
func (a *AuthService) Token(ctx context.Context) (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != nil && a.token.Valid() {
		return a.token, nil
	}

	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	config := a.getOAuthConfig()

	da, err := config.DeviceAuth(ctx)
	if err != nil {
		a.setState(StateFailed)
		return nil, &AuthFlowError{Err: err}
	}
	if da.UserCode == "" {
		a.setState(StateFailed)
		return nil, &AuthFlowError{Err: errors.New("provider returned no user code")}
	}
	a.setState(StateInitiated)

	code := DeviceCode{
		UserCode:                da.UserCode,
		VerificationURI:         da.VerificationURI,
		VerificationURIComplete: da.VerificationURIComplete,
		ExpiresAt:               da.Expiry,
		Interval:                time.Duration(da.Interval) * time.Second,
	}
	a.logger.Info("please authenticate using the device code flow",
		zap.String("verification_uri", code.VerificationURI), zap.String("user_code", code.UserCode))
	if a.prompt != nil {
		a.prompt(code)
	}

	a.setState(StatePending)
	token, err := config.DeviceAccessToken(ctx, da)
	if err != nil {
		a.setState(classifyTokenError(err))
		return nil, newTokenAcquisitionError(err)
	}
	if token.AccessToken == "" {
		a.setState(StateFailed)
		return nil, &TokenAcquisitionError{Description: "provider returned an empty access token"}
	}

	a.setState(StateGranted)
	a.token = token
	a.logger.Info("successfully authenticated with Microsoft Graph", zap.Time("expiry", token.Expiry))

	return token, nil
}

// Session authenticates if needed and returns a session whose HTTP client
// sends the bearer token on every request.
func (a *AuthService) Session(ctx context.Context) (*Session, error) {
	token, err := a.Token(ctx)
	if err != nil {
		return nil, err
	}

	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}

	return NewSession(ctx, token), nil
}

func (a *AuthService) getOAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: a.clientID,
		Scopes:   a.scopes,
		Endpoint: a.endpoint,
	}
}

func classifyTokenError(err error) DeviceState {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "access_denied", "authorization_declined":
			return StateDenied
		case "expired_token", "code_expired":
			return StateExpired
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StateExpired
	}

	return StateFailed
}

func newTokenAcquisitionError(err error) *TokenAcquisitionError {
	tokenErr := &TokenAcquisitionError{Err: err}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		tokenErr.Code = retrieveErr.ErrorCode
		tokenErr.Description = retrieveErr.ErrorDescription
	}
	if tokenErr.Code == "" && errors.Is(err, context.DeadlineExceeded) {
		tokenErr.Code = "expired_token"
		tokenErr.Description = "device code expired before sign-in completed"
	}

	return tokenErr
}
