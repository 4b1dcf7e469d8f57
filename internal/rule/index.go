package rule

import (
	"fmt"
	"strings"
)

// Index provides rule lookup by topic with MQTT wildcard support. The index
// is built once at startup and read-only afterwards; concurrent Find calls
// need no synchronization.
type Index struct {
	exact  map[string][]*Rule
	wild   *topicTree
	topics []string
}

// NewIndex builds an index over the loaded rule table. Topic filters are
// rule identity: a duplicate filter is a configuration error and refuses
// startup.
func NewIndex(rules []Rule) (*Index, error) {
	idx := &Index{
		exact: make(map[string][]*Rule),
		wild:  newTopicTree(),
	}

	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		rule := &rules[i]
		if _, dup := seen[rule.Topic]; dup {
			return nil, fmt.Errorf("duplicate topic filter: %s", rule.Topic)
		}
		seen[rule.Topic] = struct{}{}

		if containsWildcard(rule.Topic) {
			if err := idx.wild.add(rule); err != nil {
				return nil, fmt.Errorf("invalid topic filter %q: %w", rule.Topic, err)
			}
		} else {
			idx.exact[rule.Topic] = append(idx.exact[rule.Topic], rule)
		}
		idx.topics = append(idx.topics, rule.Topic)
	}

	return idx, nil
}

// Find returns every rule whose filter matches the topic. Overlapping
// filters all match; there is no first-match-wins cutoff.
func (idx *Index) Find(topic string) []*Rule {
	if topic == "" {
		return nil
	}

	var matches []*Rule
	if exact, ok := idx.exact[topic]; ok {
		matches = append(matches, exact...)
	}
	matches = append(matches, idx.wild.match(strings.Split(topic, "/"))...)
	return matches
}

// Topics returns all topic filters in the table, in load order. These are
// the filters the connection manager subscribes to.
func (idx *Index) Topics() []string {
	topics := make([]string, len(idx.topics))
	copy(topics, idx.topics)
	return topics
}

// Len returns the number of rules in the index.
func (idx *Index) Len() int {
	return len(idx.topics)
}

// containsWildcard checks if a topic filter contains MQTT wildcards
func containsWildcard(topic string) bool {
	return strings.Contains(topic, "+") || strings.Contains(topic, "#")
}
