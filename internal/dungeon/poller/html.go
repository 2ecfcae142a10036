package poller

import (
	"fmt"
	"strings"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"golang.org/x/net/html"
)

// ImageRefs returns the src of every <img> in fragment, in document order.
// The first is the map image and the second the key image; fewer than two is a protocol violation.
func ImageRefs(fragment string) ([]string, error) {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))

	var refs []string
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF ends every fragment; the tokenizer has no other failure mode on a string reader
			if len(refs) < 2 {
				return nil, &domain.ProtocolViolation{Reason: fmt.Sprintf("expected map and key images, found %d image reference(s)", len(refs))}
			}
			return refs, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "img" || !hasAttr {
				continue
			}
			for {
				key, val, more := tokenizer.TagAttr()
				if string(key) == "src" {
					if src := strings.TrimSpace(string(val)); src != "" {
						refs = append(refs, src)
					}
					break
				}
				if !more {
					break
				}
			}
		}
	}
}
