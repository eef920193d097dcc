package config

import (
	"os"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// EnvResolver expands ${NAME} and ${NAME:default} placeholders from the
// process environment. It is the stock resolver handed to the
// subscriber registry so topic templates and client ids declared as
// placeholders resolve at startup.
//
// A placeholder whose variable is unset and carries no default is left
// verbatim, keeping the failure visible in the resolved value.
func EnvResolver(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(m string) string {
		body := m[2 : len(m)-1]
		name, def, hasDefault := strings.Cut(body, ":")
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return m
	})
}
