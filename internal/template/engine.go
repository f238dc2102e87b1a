// Package template renders email subjects and bodies with the Liquid
// template language, e.g. "Hi {{ first_name | default: \"there\" }}".
package template

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Engine renders Liquid templates with a parse cache. Rendering is lax:
// missing variables render empty rather than failing a whole send wave.
type Engine struct {
	engine *liquid.Engine
	cache  sync.Map // template source -> *liquid.Template
}

// NewEngine creates an engine with the custom filters campaigns rely on.
func NewEngine() *Engine {
	e := &Engine{engine: liquid.NewEngine()}
	e.registerFilters()
	return e
}

func (e *Engine) registerFilters() {
	// {{ first_name | default: "Friend" }}
	e.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		s := fmt.Sprintf("%v", value)
		if s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ name | capitalize }}
	e.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})
}

// Render renders the template source against the given bindings.
func (e *Engine) Render(source string, bindings map[string]interface{}) (string, error) {
	if source == "" {
		return "", nil
	}

	var tpl *liquid.Template
	if cached, ok := e.cache.Load(source); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := e.engine.ParseTemplate([]byte(source))
		if err != nil {
			return "", fmt.Errorf("parse template: %w", err)
		}
		e.cache.Store(source, parsed)
		tpl = parsed
	}

	out, err := tpl.Render(bindings)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return string(out), nil
}

// RecipientBindings builds the standard variable set for one recipient.
// first_name is derived from the display name's first word.
func RecipientBindings(email, name string) map[string]interface{} {
	firstName := name
	if i := strings.IndexByte(name, ' '); i > 0 {
		firstName = name[:i]
	}
	return map[string]interface{}{
		"email":      email,
		"name":       name,
		"first_name": firstName,
	}
}
