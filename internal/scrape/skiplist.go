package scrape

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/directory_domains.yaml
var directoryYAML []byte

type directoryList struct {
	Domains []string `yaml:"domains"`
}

// SkipList identifies directory, aggregator, and social domains whose pages
// would yield the directory's contact info rather than the business's.
type SkipList struct {
	domains map[string]struct{}
}

// NewSkipList loads the embedded directory-domain list, plus any extras.
func NewSkipList(extra ...string) *SkipList {
	var list directoryList
	if err := yaml.Unmarshal(directoryYAML, &list); err != nil {
		panic("scrape: embedded directory domain list: " + err.Error())
	}
	set := make(map[string]struct{}, len(list.Domains)+len(extra))
	for _, d := range append(list.Domains, extra...) {
		set[normalizeDomain(d)] = struct{}{}
	}
	return &SkipList{domains: set}
}

// Contains reports whether the domain, or any parent of it, is a known
// directory site. "m.facebook.com" matches the "facebook.com" entry.
func (s *SkipList) Contains(domain string) bool {
	d := normalizeDomain(domain)
	for d != "" {
		if _, ok := s.domains[d]; ok {
			return true
		}
		i := strings.Index(d, ".")
		if i < 0 {
			return false
		}
		d = d[i+1:]
	}
	return false
}

func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}
