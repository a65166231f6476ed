package middleware

import (
	"fmt"
	"os"
	"strings"

	"vendor-booking/constants"
	"vendor-booking/types"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// IsAuthenticated validates the bearer token, checks the caller holds one of
// the required permissions and resolves the actor identity into Locals.
// Token issuance is external; this middleware only verifies and trusts the
// resolved claims.
func IsAuthenticated(requiredPermissions []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := parseBearerToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
				Status:  fiber.StatusUnauthorized,
				Message: err.Error(),
				Data:    nil,
			})
		}

		permissions := extractUserPermissionsFromClaims(claims)
		if !hasAnyPermission(permissions, requiredPermissions) {
			return c.Status(fiber.StatusForbidden).JSON(types.ApiResponse{
				Status:  fiber.StatusForbidden,
				Message: "Insufficient permissions",
				Data:    nil,
			})
		}

		actor, err := resolveActor(claims)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
				Status:  fiber.StatusUnauthorized,
				Message: err.Error(),
				Data:    nil,
			})
		}

		c.Locals("user", claims)
		c.Locals("permissions", permissions)
		c.Locals("actor", actor)
		return c.Next()
	}
}

// RequirePermissions is a helper function that creates a middleware with specific permissions
func RequirePermissions(permissions ...string) fiber.Handler {
	return IsAuthenticated(permissions)
}

// RequireAnyPermission allows access if user has any of the specified permissions
func RequireAnyPermission(permissions ...string) fiber.Handler {
	allPerms := append(permissions, constants.PermAny)
	return IsAuthenticated(allPerms)
}

// RequireAuthentication only requires valid authentication without specific permissions
func RequireAuthentication() fiber.Handler {
	return IsAuthenticated([]string{constants.PermAny})
}

// ActorFromContext returns the resolved actor set by IsAuthenticated.
func ActorFromContext(c *fiber.Ctx) (types.Actor, bool) {
	actor, ok := c.Locals("actor").(types.Actor)
	return actor, ok
}

func parseBearerToken(c *fiber.Ctx) (jwt.MapClaims, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("authorization header missing")
	}

	// Split "Bearer <token>"
	tokenParts := strings.Split(authHeader, " ")
	if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
		return nil, fmt.Errorf("invalid token format")
	}

	token, err := jwt.Parse(tokenParts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func resolveActor(claims jwt.MapClaims) (types.Actor, error) {
	userID, ok := claims["uid"].(float64)
	if !ok || userID <= 0 {
		return types.Actor{}, fmt.Errorf("user id not found in token")
	}

	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return types.Actor{}, fmt.Errorf("role not found in token")
	}

	actor := types.Actor{
		UserID: uint(userID),
		Role:   role,
	}

	if vendorID, ok := claims["vendor_id"].(float64); ok && vendorID > 0 {
		id := uint(vendorID)
		actor.VendorID = &id
	}

	return actor, nil
}

func hasAnyPermission(userPermissions map[string]bool, required []string) bool {
	for _, perm := range required {
		if perm == constants.PermAny || userPermissions[perm] {
			return true
		}
	}
	return false
}

// CheckPermissionInController checks if user has specific permission within a controller
func CheckPermissionInController(c *fiber.Ctx, requiredPermission string) bool {
	userPermissions, ok := c.Locals("permissions").(map[string]bool)
	if !ok {
		userClaims, ok := c.Locals("user").(jwt.MapClaims)
		if !ok {
			return false
		}
		userPermissions = extractUserPermissionsFromClaims(userClaims)
	}

	return userPermissions[requiredPermission]
}

func extractUserPermissionsFromClaims(claims jwt.MapClaims) map[string]bool {
	permissionSet := make(map[string]bool)

	userPermissions, ok := claims["permissions"].([]interface{})
	if !ok {
		return permissionSet
	}

	for _, p := range userPermissions {
		if perm, ok := p.(string); ok {
			permissionSet[perm] = true
		}
	}

	return permissionSet
}
