package sexy

import (
	"fmt"
	"strconv"
)

// Match compares actual against pattern. Inside a pattern list, an ellipsis
// matches all remaining items. Metadata present in the pattern must be
// present with a matching value in actual; metadata absent from the pattern
// is ignored.
//
// On mismatch, Match returns a description naming the path of the first
// difference, like "root[2][1]: expected 5, got 6".
func Match(pattern, actual *Node) (string, bool) {
	return match(pattern, actual, "root")
}

func match(pattern, actual *Node, path string) (string, bool) {
	if pattern.Type == NodeEllipsis {
		return "", true
	}
	if pattern.Type != actual.Type {
		return fmt.Sprintf("%s: expected %s, got %s", path, pattern, actual), false
	}

	switch pattern.Type {
	case NodeSymbol, NodeString, NodeInteger:
		if pattern.Text != actual.Text {
			return fmt.Sprintf("%s: expected %s, got %s", path, pattern, actual), false
		}
		return "", true

	case NodeList:
		for i, key := range pattern.MetaKeys {
			value, ok := actual.Meta(key)
			if !ok {
				return fmt.Sprintf("%s: missing metadata %s", path, key), false
			}
			if msg, ok := match(pattern.MetaItems[i], value, path+"^"+key); !ok {
				return msg, false
			}
		}
		for i, p := range pattern.Items {
			if p.Type == NodeEllipsis {
				return "", true
			}
			if i >= len(actual.Items) {
				return fmt.Sprintf("%s: expected %d items, got %d in %s", path, len(pattern.Items), len(actual.Items), actual), false
			}
			if msg, ok := match(p, actual.Items[i], path+"["+strconv.Itoa(i)+"]"); !ok {
				return msg, false
			}
		}
		if len(actual.Items) != len(pattern.Items) {
			return fmt.Sprintf("%s: expected %d items, got %d in %s", path, len(pattern.Items), len(actual.Items), actual), false
		}
		return "", true

	case NodeMap:
		for i, key := range pattern.Keys {
			found := false
			for j, k := range actual.Keys {
				if k == key {
					found = true
					if msg, ok := match(pattern.Items[i], actual.Items[j], path+"."+key); !ok {
						return msg, false
					}
				}
			}
			if !found {
				return fmt.Sprintf("%s: missing key %s", path, key), false
			}
		}
		return "", true
	}
	return fmt.Sprintf("%s: cannot compare %s", path, pattern), false
}
