package httpauth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DefaultTokenLookup only reads the Authorization header
const DefaultTokenLookup = "header:" + fiber.HeaderAuthorization

// TokenExtractor pulls a raw token out of a request
type TokenExtractor func(c *fiber.Ctx) (string, error)

// ExtractToken returns the first token any extractor finds
func ExtractToken(c *fiber.Ctx, extractors []TokenExtractor) (string, error) {
	for _, extractor := range extractors {
		raw, err := extractor(c)
		if raw != "" && err == nil {
			return raw, nil
		}
	}
	return "", ErrMissingBearer
}

// GetExtractors parses a lookup string such as
// "header:Authorization,query:access_token,cookie:jwt,param:token".
func GetExtractors(tokenLookup string, authScheme string) []TokenExtractor {
	if authScheme == "" {
		authScheme = "Bearer"
	}

	extractors := make([]TokenExtractor, 0)
	for _, rootPart := range strings.Split(tokenLookup, ",") {
		source, name, ok := strings.Cut(strings.TrimSpace(rootPart), ":")
		if !ok {
			continue
		}
		source = strings.TrimSpace(source)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		switch source {
		case "header":
			extractors = append(extractors, tokenFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, tokenFromQuery(name))
		case "param":
			extractors = append(extractors, tokenFromParam(name))
		case "cookie":
			extractors = append(extractors, tokenFromCookie(name))
		}
	}

	return extractors
}

// tokenFromHeader accepts "<scheme> <token>", scheme matched case
// insensitively. Any other scheme counts as no token.
func tokenFromHeader(header, authScheme string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		value := c.Get(header)
		scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
		if !ok || !strings.EqualFold(scheme, authScheme) {
			return "", ErrMissingBearer
		}
		token = strings.TrimSpace(token)
		if token == "" {
			return "", ErrMissingBearer
		}
		return token, nil
	}
}

func tokenFromQuery(param string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrMissingBearer
		}
		return token, nil
	}
}

func tokenFromParam(param string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrMissingBearer
		}
		return token, nil
	}
}

func tokenFromCookie(name string) TokenExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrMissingBearer
		}
		return token, nil
	}
}
