package report

import (
	"net/url"
	"sort"
	"strings"
)

// UnknownDomain labels urls without a parseable host.
const UnknownDomain = "(unknown)"

// DomainCount is the number of links pointing at one host.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}

// Delta is the change of one key between two periods.
type Delta struct {
	Key   string `json:"key"`
	This  int64  `json:"this"`
	Last  int64  `json:"last"`
	Delta int64  `json:"delta"`
}

// DomainOf returns the lowercased host of raw with "www." removed.
func DomainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return UnknownDomain
	}
	host := strings.ReplaceAll(strings.ToLower(u.Host), "www.", "")
	if host == "" {
		return UnknownDomain
	}
	return host
}

// CountDomains tallies urls per domain, most cited first.
func CountDomains(urls []string) []DomainCount {
	counts := make(map[string]int64)
	for _, u := range urls {
		counts[DomainOf(u)]++
	}

	out := make([]DomainCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DomainCount{Domain: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

// Deltas compares two count maps over the union of their keys, largest
// absolute change first and then by the current count.
func Deltas(this, last map[string]int64) []Delta {
	keys := make(map[string]struct{}, len(this)+len(last))
	for k := range this {
		keys[k] = struct{}{}
	}
	for k := range last {
		keys[k] = struct{}{}
	}

	out := make([]Delta, 0, len(keys))
	for k := range keys {
		out = append(out, Delta{Key: k, This: this[k], Last: last[k], Delta: this[k] - last[k]})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].Delta), abs(out[j].Delta)
		if ai != aj {
			return ai > aj
		}
		if out[i].This != out[j].This {
			return out[i].This > out[j].This
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
