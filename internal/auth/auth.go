package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tastyrock/marketplace-api/pkg/response"
)

var (
	ErrInvalidLogin    = errors.New("invalid login assertion")
	ErrTokenGeneration = errors.New("failed to generate token")
)

// LoginAssertion is what the Steam login front-channel posts after it has
// verified the OpenID round-trip. The gateway secret proves the assertion
// came from our own login handler, not from an arbitrary client.
type LoginAssertion struct {
	SteamID       string `json:"steam_id"`
	GatewaySecret string `json:"gateway_secret"`
}

// TokenResponse is the issued session token
type TokenResponse struct {
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
}

// Claims is the JWT claims structure for a marketplace session
type Claims struct {
	jwt.RegisteredClaims
	SteamID string `json:"steam_id"`
}

// Service issues and validates marketplace session tokens
type Service struct {
	jwtSecret     []byte
	gatewaySecret string
}

// NewService creates an authentication service. jwtSecret signs session
// tokens; gatewaySecret authenticates the login front-channel.
func NewService(jwtSecret, gatewaySecret string) *Service {
	return &Service{
		jwtSecret:     []byte(jwtSecret),
		gatewaySecret: gatewaySecret,
	}
}

// GenerateToken issues a 24-hour session token for a verified steam id
func (s *Service) GenerateToken(assertion LoginAssertion) (*TokenResponse, error) {
	if assertion.SteamID == "" || assertion.GatewaySecret != s.gatewaySecret {
		return nil, ErrInvalidLogin
	}

	expiration := time.Now().Add(24 * time.Hour)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		SteamID: assertion.SteamID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken verifies signature and expiration and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates the HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GenerateTokenHandler handles POST requests to exchange a login assertion
// for a session token
func (h *GinHandlers) GenerateTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var assertion LoginAssertion
		if err := c.ShouldBindJSON(&assertion); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.GenerateToken(assertion)
		if errors.Is(err, ErrInvalidLogin) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// GetSteamID extracts the steam id from JWT claims stored in the gin context.
// Returns empty string if the claim is missing or malformed.
func GetSteamID(claims interface{}) string {
	if jwtClaims, ok := claims.(jwt.MapClaims); ok {
		if steamID, ok := jwtClaims["steam_id"].(string); ok {
			return steamID
		}
	}
	return ""
}
