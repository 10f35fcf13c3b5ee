package httpapi

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
)

const (
	claimsContextKey  = "auth_claims"
	sessionContextKey = "restaurant_session"
	cookiePath        = "/"
)

// issueSession signs a session token for subject and sets it as the session cookie.
func (handler *httpHandler) issueSession(ctx *gin.Context, scope restaurant.SessionScope, subject string, email string, name string) (string, error) {
	issuedAt := handler.now().UTC()
	claims := &sessionvalidator.Claims{
		UserID:          subject,
		UserEmail:       email,
		UserDisplayName: name,
		UserRoles:       []string{string(scope)},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    handler.cfg.SessionIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(handler.cfg.SessionTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(handler.cfg.SessionSigningKey))
	if err != nil {
		return "", err
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(handler.cfg.SessionCookieName, token, int(handler.cfg.SessionTTL/time.Second), cookiePath, "", handler.cfg.SecureCookies, true)
	return token, nil
}

// clearSession revokes the presented token and expires the cookie.
func (handler *httpHandler) clearSession(ctx *gin.Context) {
	if claims := getClaims(ctx); claims != nil && claims.ExpiresAt != nil {
		handler.revoked.revoke(claims.ID, claims.ExpiresAt.Time, handler.now())
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(handler.cfg.SessionCookieName, "", -1, cookiePath, "", handler.cfg.SecureCookies, true)
}

// requireSession resolves validated claims into a restaurant.Session of the given scope.
func (handler *httpHandler) requireSession(scope restaurant.SessionScope) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims := getClaims(ctx)
		if claims == nil {
			abortWithError(ctx, http.StatusUnauthorized, errorCodeUnauthorized, "missing session")
			return
		}
		if handler.revoked.isRevoked(claims.ID, handler.now()) {
			abortWithError(ctx, http.StatusUnauthorized, errorCodeUnauthorized, "session revoked")
			return
		}
		if !slices.Contains(claims.GetUserRoles(), string(scope)) {
			abortWithError(ctx, http.StatusForbidden, errorCodeForbidden, "session scope not allowed")
			return
		}
		session, err := handler.resumeSession(ctx, scope, claims.GetUserID())
		if err != nil {
			if restaurant.IsDomainError(err) && !errors.Is(err, restaurant.ErrStudentInactive) {
				abortWithError(ctx, http.StatusUnauthorized, errorCodeUnauthorized, "session no longer valid")
				return
			}
			handler.writeServiceError(ctx, err)
			return
		}
		ctx.Set(sessionContextKey, session)
		ctx.Next()
	}
}

func (handler *httpHandler) resumeSession(ctx *gin.Context, scope restaurant.SessionScope, subject string) (restaurant.Session, error) {
	switch scope {
	case restaurant.SessionScopeStudent:
		studentID, err := restaurant.NewStudentID(subject)
		if err != nil {
			return nil, err
		}
		return handler.service.ResumeStudentSession(ctx.Request.Context(), studentID)
	case restaurant.SessionScopeAdmin:
		adminID, err := restaurant.NewAdminID(subject)
		if err != nil {
			return nil, err
		}
		return handler.service.ResumeAdminSession(ctx.Request.Context(), adminID)
	default:
		return nil, errors.New("unknown session scope")
	}
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

func studentSession(ctx *gin.Context) restaurant.StudentSession {
	value, _ := ctx.Get(sessionContextKey)
	session, _ := value.(restaurant.StudentSession)
	return session
}

func adminSession(ctx *gin.Context) restaurant.AdminSession {
	value, _ := ctx.Get(sessionContextKey)
	session, _ := value.(restaurant.AdminSession)
	return session
}
