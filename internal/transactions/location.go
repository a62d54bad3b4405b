package transactions

import "context"

// locationHistoryLimit caps how many known locations feed the anomaly check.
const locationHistoryLimit = 10

// LocationHistory flags a location as anomalous when the user has prior
// transactions and none of them took place there. A user's first
// transaction establishes their history and is never anomalous on its own.
type LocationHistory struct {
	store Store
}

// NewLocationHistory creates a history-backed location checker.
func NewLocationHistory(store Store) *LocationHistory {
	return &LocationHistory{store: store}
}

func (l *LocationHistory) IsAnomalous(ctx context.Context, userID, location string) (bool, error) {
	if location == "" {
		return false, nil
	}
	known, err := l.store.DistinctLocations(ctx, userID, locationHistoryLimit)
	if err != nil {
		return false, err
	}
	if len(known) == 0 {
		return false, nil
	}
	for _, loc := range known {
		if loc == location {
			return false, nil
		}
	}
	return true, nil
}
