package availability

// QuotaTable maps resource groups to their per-day capacity quota.
// Groups without a specific entry use Default.
type QuotaTable struct {
	Default int
	Groups  map[string]int
}

// For returns the quota for a group, falling back to the default.
func (q QuotaTable) For(group string) int {
	if quota, ok := q.Groups[group]; ok {
		return quota
	}
	return q.Default
}
