package middleware

import (
	"time"
	"unicode"

	contextPkg "PersonalAssistant/pkg/context"
	"PersonalAssistant/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	RequestIDKey      = "X-Request-ID"
	maxRequestIDBytes = 64
)

// NewRequestIDMiddleware reuses a caller supplied id when it is short and
// printable, otherwise mints a ULID. The id is echoed back and stored on the
// user context for services.
func NewRequestIDMiddleware() fiber.Handler {
	utilsInstance := utils.New()

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)

		if !validRequestID(requestID) {
			requestID, _ = utilsInstance.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)
		c.SetUserContext(contextPkg.WithRequestID(c.UserContext(), requestID))

		return c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDBytes {
		return false
	}
	for _, r := range id {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
