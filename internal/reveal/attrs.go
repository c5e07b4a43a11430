package reveal

import (
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"
)

var passthrough = map[string]bool{
	"role":            true,
	"aria-label":      true,
	"aria-labelledby": true,
	"aria-hidden":     true,
}

// Attrs renders the attributes of an animated block for html/template:
//
//	<section {{reveal "about" 100 "role=region" "class=container"}}>
//
// extra holds key=value pairs; class is merged, ARIA attributes and role are
// passed through, anything else is dropped.
func Attrs(target string, delayMS int, extra ...string) template.HTMLAttr {
	// Markup is rendered hidden; the browser flips it to visible.
	a := New(target, nil, WithDelay(time.Duration(delayMS)*time.Millisecond))
	class := []string{a.Class()}
	var rest []string
	for _, kv := range extra {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		switch {
		case k == "class":
			class = append(class, v)
		case passthrough[k]:
			rest = append(rest, fmt.Sprintf(`%s="%s"`, k, html.EscapeString(v)))
		}
	}

	parts := []string{
		fmt.Sprintf(`data-reveal="%s"`, html.EscapeString(target)),
		fmt.Sprintf(`class="%s"`, html.EscapeString(strings.Join(class, " "))),
		fmt.Sprintf(`style="%s"`, a.Style()),
	}
	parts = append(parts, rest...)
	return template.HTMLAttr(strings.Join(parts, " "))
}
