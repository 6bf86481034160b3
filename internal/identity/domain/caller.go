package domain

// Caller is the authenticated subject of a request. Service is set instead of
// ID for internal callers such as the payment event consumer.
type Caller struct {
	ID      string
	IsAdmin bool
	Service string
}

func ServiceCaller(name string) Caller { return Caller{Service: name} }

func (c Caller) IsService() bool { return c.Service != "" }

// Owns reports whether c may act on a resource belonging to userID.
func (c Caller) Owns(userID string) bool {
	return c.IsAdmin || (c.ID != "" && c.ID == userID)
}
