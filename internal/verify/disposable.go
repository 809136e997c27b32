package verify

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/disposable_domains.yaml
var disposableYAML []byte

type disposableList struct {
	Domains []string `yaml:"domains"`
}

// loadDisposableDomains parses the embedded disposable-provider list into a
// lookup set.
func loadDisposableDomains() map[string]struct{} {
	var list disposableList
	if err := yaml.Unmarshal(disposableYAML, &list); err != nil {
		// The embedded file is validated by tests; an unparsable list is a
		// build defect, not a runtime condition.
		panic("verify: embedded disposable domain list: " + err.Error())
	}
	set := make(map[string]struct{}, len(list.Domains))
	for _, d := range list.Domains {
		set[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	return set
}
