package guard

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

var errCredentialMissing = goerrors.New("missing or malformed bearer credential", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

type tokenExtractor func(c router.Context) (string, error)

func extractRawToken(ctx router.Context, cfg Config) (string, error) {
	var raw string
	var err error

	for _, extractor := range extractors(cfg.TokenLookup, cfg.AuthScheme) {
		raw, err = extractor(ctx)
		if raw != "" && err == nil {
			break
		}
	}

	if raw == "" && err == nil {
		err = errCredentialMissing
	}

	return raw, err
}

// extractors parses a lookup spec such as
// "header:Authorization,cookie:jwt,query:auth_token,param:token".
func extractors(tokenLookup, authScheme string) []tokenExtractor {
	out := make([]tokenExtractor, 0)

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.Split(strings.TrimSpace(rootPart), ":")
		if len(parts) != 2 {
			continue
		}

		for i, el := range parts {
			parts[i] = strings.TrimSpace(el)
		}

		switch parts[0] {
		case "header":
			out = append(out, tokenFromHeader(parts[1], authScheme))
		case "query":
			out = append(out, tokenFromQuery(parts[1]))
		case "param":
			out = append(out, tokenFromParam(parts[1]))
		case "cookie":
			out = append(out, tokenFromCookie(parts[1]))
		}
	}

	return out
}

func tokenFromHeader(header string, authScheme string) tokenExtractor {
	return func(c router.Context) (string, error) {
		a := c.GetString(header, "")
		l := len(authScheme)
		if l == 0 {
			return "", errCredentialMissing
		}
		authScheme = strings.TrimSpace(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) {
			return strings.TrimSpace(a[l:]), nil
		}
		return "", errCredentialMissing
	}
}

func tokenFromQuery(param string) tokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Query(param, "")
		if token == "" {
			return "", errCredentialMissing
		}
		return token, nil
	}
}

func tokenFromParam(param string) tokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Param(param)
		if token == "" {
			return "", errCredentialMissing
		}
		return token, nil
	}
}

func tokenFromCookie(name string) tokenExtractor {
	return func(c router.Context) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", errCredentialMissing
		}
		return token, nil
	}
}
