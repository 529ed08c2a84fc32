// Package options holds the helpers shared by every option group.
//
// Each group binds its flags under a dotted prefix that mirrors the config
// file layout, so "--cache.redis.host" and
//
//	cache:
//	  redis:
//	    host: ...
//
// set the same field.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join builds a flag name prefix from its parts: Join("cache", "redis")
// returns "cache.redis." and Join() returns "".
func Join(prefixes ...string) string {
	var parts []string
	for _, p := range prefixes {
		if p = strings.Trim(p, "."); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ".") + "."
}

// IOptions is implemented by option groups that can be nested under a prefix.
type IOptions interface {
	// Validate returns every invalid field.
	Validate() []error

	// AddFlags binds the fields to fs under the given prefixes.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
