package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"pawchat/backend/internal/config"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const userKey = "user_id"

var errMissingToken = errors.New("authorization token missing")

// TokenIssuer mints and verifies HS256 identity tokens whose subject is the user id.
type TokenIssuer struct {
	secret []byte
	TTL    time.Duration
	Issuer string
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), TTL: config.TokenTTL, Issuer: config.TokenIssuer}
}

// Mint генерує JWT для userID
func (t *TokenIssuer) Mint(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(t.TTL).Unix(),
		"iss": t.Issuer, // Видавець
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify returns the subject of a valid, unexpired token.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

type tokenRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// IssueToken mints a token for any user id. Development only.
func (h *Handler) IssueToken(c *gin.Context) {
	if !h.DevTokens {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "token issuer disabled"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "user_id is required")
		return
	}
	token, err := h.Tokens.Mint(req.UserID)
	if err != nil {
		h.Logger.Error("failed to create token", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user_id": req.UserID})
}

// RequireUser authenticates the bearer token, or the token query parameter
// used by WebSocket clients, and stores the user id in the context.
func (h *Handler) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error(), Code: "unauthorized"})
			return
		}
		userID, err := h.Tokens.Verify(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token or expired", Code: "unauthorized"})
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return "", errMissingToken
		}
		return token, nil
	}
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", errMissingToken
}

// CurrentUser returns the authenticated user id, or "" outside RequireUser.
func CurrentUser(c *gin.Context) string {
	return c.GetString(userKey)
}
