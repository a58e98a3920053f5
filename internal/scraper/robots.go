package scraper

import (
	"bufio"
	"strings"
)

// RobotsPolicy holds the Disallow rules of the "User-agent: *" group.
// Allow lines and agent-specific groups are not evaluated.
type RobotsPolicy struct {
	blockAll bool
	disallow []string
}

// AllowAll is the policy used when robots.txt is missing or unreadable
var AllowAll = RobotsPolicy{}

// ParseRobots reads robots.txt content
func ParseRobots(content string) RobotsPolicy {
	var (
		policy     RobotsPolicy
		inWildcard bool
		lastWasUA  bool
	)

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			// consecutive User-agent lines share one group
			if !lastWasUA {
				inWildcard = false
			}
			if value == "*" {
				inWildcard = true
			}
			lastWasUA = true
			continue
		case "disallow":
			if inWildcard && value != "" {
				if value == "/" {
					policy.blockAll = true
				} else {
					policy.disallow = append(policy.disallow, value)
				}
			}
		}
		lastWasUA = false
	}

	return policy
}

// Allowed reports whether path may be fetched
func (p RobotsPolicy) Allowed(path string) bool {
	if p.blockAll {
		return false
	}
	if path == "" {
		path = "/"
	}
	for _, rule := range p.disallow {
		if strings.HasPrefix(path, rule) {
			return false
		}
	}
	return true
}
