package app

import (
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

// InviteService mints and checks signed room-invite tokens. A token names
// the room it opens and the player who issued it, so a client can share a
// deep link without exposing the match id to guessing.
type InviteService struct {
	secret string
	issuer string
	ttl    time.Duration
}

// Invite is the verified content of an invite token.
type Invite struct {
	RoomID    string
	InviterID string
}

func NewInviteService(secret, issuer string, ttl time.Duration) *InviteService {
	return &InviteService{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
	}
}

// GenerateToken signs a short-lived invite for the given room.
func (s *InviteService) GenerateToken(roomID, inviterID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("invite service is nil")
	}
	if roomID == "" {
		return "", fmt.Errorf("room id is required")
	}
	if inviterID == "" {
		return "", fmt.Errorf("inviter id is required")
	}
	if s.secret == "" || s.issuer == "" {
		return "", fmt.Errorf("invite config is incomplete")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  s.issuer,
		"sub":  inviterID,
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
		"room": roomID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// ValidateToken verifies signature, issuer and expiry and returns the
// invite content.
func (s *InviteService) ValidateToken(tokenString string) (Invite, error) {
	if s == nil || s.secret == "" {
		return Invite{}, fmt.Errorf("invite config is incomplete")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return Invite{}, fmt.Errorf("invalid invite token: %w", err)
	}
	if !token.Valid {
		return Invite{}, fmt.Errorf("invalid invite token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Invite{}, fmt.Errorf("invite token claims malformed")
	}
	if iss, _ := claims["iss"].(string); iss != s.issuer {
		return Invite{}, fmt.Errorf("invite token issuer mismatch")
	}
	roomID, _ := claims["room"].(string)
	inviterID, _ := claims["sub"].(string)
	if roomID == "" {
		return Invite{}, fmt.Errorf("invite token missing room")
	}

	return Invite{RoomID: roomID, InviterID: inviterID}, nil
}
