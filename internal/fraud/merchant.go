package fraud

import (
	"context"
	"strings"
)

// StaticMerchantList flags merchants from a fixed, case-insensitive list.
type StaticMerchantList struct {
	flagged map[string]struct{}
}

// NewStaticMerchantList builds a checker from configured merchant names.
func NewStaticMerchantList(merchants []string) *StaticMerchantList {
	flagged := make(map[string]struct{}, len(merchants))
	for _, m := range merchants {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			flagged[m] = struct{}{}
		}
	}
	return &StaticMerchantList{flagged: flagged}
}

func (s *StaticMerchantList) IsFlagged(_ context.Context, merchant string) (bool, error) {
	_, ok := s.flagged[strings.ToLower(strings.TrimSpace(merchant))]
	return ok, nil
}
