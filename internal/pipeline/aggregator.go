package pipeline

import (
	"github.com/gatherhub/eventdir/internal/models"
	"github.com/gatherhub/eventdir/pkg/utils"
)

// Merge folds fetch results over the previous aggregated map. Successes
// upsert their group by urlname; failures leave any existing entry
// untouched so a transient provider outage degrades to serving
// last-known-good data instead of dropping the group. The returned error
// strings preserve result order.
func Merge(prev models.AggregatedData, results []models.FetchResult) (models.AggregatedData, []string) {
	next := make(models.AggregatedData, len(prev)+len(results))
	for urlname, group := range prev {
		next[urlname] = group
	}

	errs := make([]string, 0)
	for _, result := range results {
		if result.Success() {
			next[result.Group.Urlname] = *result.Group
			continue
		}
		errs = append(errs, result.Error)
	}

	return next, errs
}

// Hash computes the content fingerprint of the aggregated map. The JSON
// encoding sorts map keys, so the hash depends only on normalized content,
// never on iteration or completion order.
func Hash(data models.AggregatedData) (string, error) {
	return utils.HashJSON(data)
}

// CountResults tallies successes and failures from one run's results.
func CountResults(results []models.FetchResult) (processed, failed int) {
	for _, r := range results {
		if r.Success() {
			processed++
		} else {
			failed++
		}
	}
	return processed, failed
}
