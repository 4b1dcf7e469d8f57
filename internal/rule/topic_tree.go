package rule

import (
	"fmt"
	"strings"
)

// topicTree is a prefix tree over topic filter segments for wildcard
// matching. It is populated once by the index and read-only afterwards,
// so no locking is needed.
type topicTree struct {
	root *topicNode
}

type topicNode struct {
	children map[string]*topicNode
	rules    []*Rule
}

func newTopicTree() *topicTree {
	return &topicTree{root: newTopicNode()}
}

func newTopicNode() *topicNode {
	return &topicNode{children: make(map[string]*topicNode)}
}

// add inserts a rule under its filter path. Wildcard placement is
// validated: + must occupy a whole segment, # must be the final segment.
func (t *topicTree) add(rule *Rule) error {
	if rule == nil || rule.Topic == "" {
		return fmt.Errorf("invalid rule or empty topic filter")
	}

	segments := strings.Split(rule.Topic, "/")

	current := t.root
	for i, segment := range segments {
		isLast := i == len(segments)-1

		if segment == "#" && !isLast {
			return fmt.Errorf("multi-level wildcard (#) must be the last segment")
		}
		if strings.Contains(segment, "+") && segment != "+" {
			return fmt.Errorf("single-level wildcard (+) must be the entire segment")
		}
		if strings.Contains(segment, "#") && segment != "#" {
			return fmt.Errorf("multi-level wildcard (#) must be the entire segment")
		}

		next, exists := current.children[segment]
		if !exists {
			next = newTopicNode()
			current.children[segment] = next
		}

		if isLast {
			next.rules = append(next.rules, rule)
		}
		current = next
	}

	return nil
}

// match returns every rule whose filter matches the topic segments.
func (t *topicTree) match(segments []string) []*Rule {
	var matches []*Rule
	t.walk(t.root, segments, 0, &matches)
	return matches
}

func (t *topicTree) walk(node *topicNode, segments []string, depth int, matches *[]*Rule) {
	if node == nil {
		return
	}

	if depth == len(segments) {
		*matches = append(*matches, node.rules...)
		// "a/#" also matches the bare parent "a" (zero trailing segments)
		if child, ok := node.children["#"]; ok {
			*matches = append(*matches, child.rules...)
		}
		return
	}

	segment := segments[depth]

	if child, ok := node.children[segment]; ok {
		t.walk(child, segments, depth+1, matches)
	}

	if child, ok := node.children["+"]; ok {
		t.walk(child, segments, depth+1, matches)
	}

	// # consumes all remaining segments
	if child, ok := node.children["#"]; ok {
		*matches = append(*matches, child.rules...)
	}
}
