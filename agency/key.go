package agency

// CacheKey returns the cache key of an agency instance: "agencyID/threadID",
// or agencyID alone when threadID is empty.
func CacheKey(agencyID, threadID string) string {
	if threadID == "" {
		return agencyID
	}
	return agencyID + "/" + threadID
}
