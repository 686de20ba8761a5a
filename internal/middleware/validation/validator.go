package validation

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxLabelLength int
	MaxGuideSize   int
	MaxImageSize   int
	Logger         *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxLabelLength == 0 {
		cfg.MaxLabelLength = 20000
	}
	if cfg.MaxGuideSize == 0 {
		cfg.MaxGuideSize = 5 * 1024 * 1024
	}
	if cfg.MaxImageSize == 0 {
		cfg.MaxImageSize = 8 * 1024 * 1024
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		path := c.Path()

		if strings.HasSuffix(path, "/scan") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			text, _ := req["text"].(string)
			if len(text) > cfg.MaxLabelLength {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Label text exceeds maximum length",
				})
			}

			if containsXSS(text) {
				cfg.Logger.Warn("Potential XSS attempt",
					zap.String("ip", c.IP()),
					zap.String("path", path),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid label content",
				})
			}
		}

		if strings.HasSuffix(path, "/scan/image") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			image, _ := req["image_base64"].(string)
			if image == "" {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "image_base64 is required and must be a string",
				})
			}
			if base64.StdEncoding.DecodedLen(len(image)) > cfg.MaxImageSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Image exceeds maximum size",
				})
			}
		}

		if strings.HasSuffix(path, "/guide") {
			var req map[string]interface{}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			content, _ := req["content"].(string)
			if len(content) > cfg.MaxGuideSize {
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Guide content exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}
