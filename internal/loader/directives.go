package loader

import (
	"regexp"
	"strings"
)

var (
	dependsDirective       = regexp.MustCompile(`(?i)^--\s*depends:\s*(.+)$`)
	transactionalDirective = regexp.MustCompile(`(?i)^--\s*transactional:\s*(true|false)\s*$`)
)

// directives holds the parsed result of scanning a SQL file for `-- depends:`
// and `-- transactional:` comment lines (§4.1, §6 grammar).
type directives struct {
	dependsOn     map[string]struct{}
	transactional bool
	sawTxDirective bool
}

func parseDirectives(sql string) directives {
	d := directives{dependsOn: map[string]struct{}{}, transactional: true}
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if m := dependsDirective.FindStringSubmatch(line); m != nil {
			for _, id := range strings.Fields(m[1]) {
				d.dependsOn[id] = struct{}{}
			}
			continue
		}
		if m := transactionalDirective.FindStringSubmatch(line); m != nil {
			d.transactional = strings.EqualFold(m[1], "true")
			d.sawTxDirective = true
		}
	}
	return d
}
