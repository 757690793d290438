package publishers

import "time"

// Event is the payload published for every newly exported transaction.
type Event struct {
	Country        string         `json:"country"`
	AccountID      string         `json:"account_id"`
	OwnerName      string         `json:"owner_name,omitempty"`
	TransactionKey string         `json:"transaction_key"`
	Transaction    map[string]any `json:"transaction"`
	ExportedAt     time.Time      `json:"exported_at"`
}

// NewEvent constructs an Event for one transaction record of an account.
func NewEvent(country, accountID, ownerName, key string, record map[string]any) Event {
	return Event{
		Country:        country,
		AccountID:      accountID,
		OwnerName:      ownerName,
		TransactionKey: key,
		Transaction:    record,
		ExportedAt:     time.Now().UTC(),
	}
}

// attributes are attached as message attributes by the queue and topic publishers.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"account_id":      e.AccountID,
		"country":         e.Country,
		"transaction_key": e.TransactionKey,
	}
}

// stringAttributes converts event attributes into the value type a sink expects,
// dropping empty values.
func stringAttributes[T any](attrs map[string]string, build func(value string) T) map[string]T {
	out := make(map[string]T, len(attrs))
	for k, v := range attrs {
		if v == "" {
			continue
		}
		out[k] = build(v)
	}
	return out
}
