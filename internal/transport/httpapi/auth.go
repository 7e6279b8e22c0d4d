package httpapi

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt"
)

const localUserID = "user_id"

// authenticate проверяет Bearer JWT (HS256); subject токена содержит идентификатор пользователя.
func (s *Server) authenticate(c *fiber.Ctx) error {
	raw, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(errorJSON{Code: codeUnauthorized, Message: "missing bearer token"})
	}

	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		s.logger.WithError(err).Debug("rejected bearer token")
		return c.Status(fiber.StatusUnauthorized).JSON(errorJSON{Code: codeUnauthorized, Message: "invalid token"})
	}

	c.Locals(localUserID, claims.Subject)
	return c.Next()
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}
