package external

import (
	"context"
	"encoding/json"
	"net/http"

	"gymdesk/internal/config"
	"gymdesk/internal/types"
)

// maxIntrospectionSize bounds the introspection response read (64 KB).
const maxIntrospectionSize = 64 << 10

// introspectionRequest is the token introspection payload sent to the auth
// service.
type introspectionRequest struct {
	Token string `json:"token"`
}

// introspectionResponse is the auth service's verdict on a token. Inactive
// tokens come back with Active=false and no actor.
type introspectionResponse struct {
	Active bool   `json:"active"`
	ID     string `json:"id"`
	Type   string `json:"type"`
	GymID  string `json:"gym_id"`
	Source string `json:"source"`
}

// AuthClient resolves bearer tokens against the external auth service.
// It satisfies core.Authenticator and shares the upstream transport with
// the AI client, on its own breaker.
type AuthClient struct {
	up       *upstream
	endpoint string
}

// NewAuthClient creates an AuthClient from the auth configuration.
func NewAuthClient(cfg config.AuthConfig, opts ...upstreamOption) *AuthClient {
	return &AuthClient{
		up:       newUpstream("auth-service", cfg.Timeout, maxIntrospectionSize, opts...),
		endpoint: cfg.EndpointURL,
	}
}

// ResolveToken introspects the token and returns the actor it represents.
// Invalid and expired tokens produce an auth_token_invalid AppError; auth
// service outages surface as upstream errors so a middleware can answer
// 502 instead of silently rejecting every caller.
func (c *AuthClient) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	rep, err := c.up.postJSON(ctx, c.endpoint+"/v1/introspect", nil, introspectionRequest{Token: token})
	if err != nil {
		return nil, err
	}

	switch rep.status {
	case http.StatusOK:
		// Fall through to decoding.
	case http.StatusUnauthorized:
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token rejected by auth service", nil)
	default:
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "unexpected auth service response", nil)
	}

	var verdict introspectionResponse
	if err := json.Unmarshal(rep.body, &verdict); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "malformed introspection response", err)
	}

	if !verdict.Active {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token is not active", nil)
	}

	actorType := types.ActorType(verdict.Type)
	if actorType == "" {
		actorType = types.ActorTypeUser
	}

	// System tokens are platform-scoped; every other actor must be bound
	// to a gym.
	if verdict.GymID == "" && actorType != types.ActorTypeSystem {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "token is not bound to a gym", nil)
	}

	return &types.Actor{
		ID:       verdict.ID,
		Type:     actorType,
		TenantID: verdict.GymID,
		Source:   verdict.Source,
	}, nil
}
