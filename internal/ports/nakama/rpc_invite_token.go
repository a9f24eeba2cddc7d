package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"bluffroyal/internal/app"
	"bluffroyal/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// inviteService is replaced by tests; production wiring builds it from the
// runtime environment on first use.
var inviteService *app.InviteService

// InviteTokenRequest asks for a signed invite to a specific match.
type InviteTokenRequest struct {
	MatchID string `json:"match_id"`
}

// InviteTokenResponse carries the signed token back to the client.
type InviteTokenResponse struct {
	Token string `json:"token"`
}

// RpcGetInviteToken mints a shareable invite token for the caller's match.
// Payload: {"match_id": "..."}
func RpcGetInviteToken(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if userID == "" {
		return "", runtime.NewError("authentication required", 16) // UNAUTHENTICATED
	}

	var req InviteTokenRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return "", runtime.NewError("invalid payload", 3) // INVALID_ARGUMENT
	}
	if req.MatchID == "" {
		return "", runtime.NewError("match_id required", 3)
	}

	svc := inviteService
	if svc == nil {
		env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
		secret := env["bluffroyal_invite_secret"]
		issuer := env["bluffroyal_invite_issuer"]
		if secret == "" || issuer == "" {
			secret = "test-secret"
			issuer = "bluffroyal"
			logger.Warn("Invite credentials missing from env, using test defaults.")
		}
		svc = app.NewInviteService(secret, issuer, config.InviteTokenTTL())
		inviteService = svc
	}

	token, err := svc.GenerateToken(req.MatchID, userID)
	if err != nil {
		logger.Error("Failed to generate invite token: %v", err)
		return "", runtime.NewError("internal error", 13) // INTERNAL
	}

	resBytes, _ := json.Marshal(InviteTokenResponse{Token: token})
	return string(resBytes), nil
}
