package middleware

import (
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/client"
)

// ValidateTwilioSignature validates that the webhook request is from Twilio.
// publicURL is the externally visible base URL Twilio calls; when empty the
// URL is rebuilt from the request.
func ValidateTwilioSignature(authToken, publicURL string) fiber.Handler {
	validator := client.NewRequestValidator(authToken)
	publicURL = strings.TrimRight(publicURL, "/")

	return func(c *fiber.Ctx) error {
		// Get Twilio signature from header
		twilioSignature := c.Get("X-Twilio-Signature")
		if twilioSignature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing Twilio signature",
			})
		}

		if authToken == "" {
			// Log error but don't expose to client
			log.Println("❌ TWILIO_AUTH_TOKEN not set")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Server configuration error",
			})
		}

		fullURL := getFullURL(c, publicURL)

		formParams := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			formParams[string(key)] = string(value)
		})

		if !validator.Validate(fullURL, formParams, twilioSignature) {
			log.Printf("⚠️  Invalid Twilio signature for %s", fullURL)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid signature",
			})
		}

		return c.Next()
	}
}

// getFullURL constructs the URL Twilio signed, including the query string
func getFullURL(c *fiber.Ctx, publicURL string) string {
	if publicURL != "" {
		return publicURL + c.OriginalURL()
	}

	protocol := "https"
	if c.Protocol() == "http" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s%s", protocol, c.Hostname(), c.OriginalURL())
}
