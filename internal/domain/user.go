package domain

// UserRecord is the flattened, validated output of a successful lookup.
// encoding/json emits keys in struct order, so a serialized record always
// carries exactly these five keys in this order.
type UserRecord struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	City    string `json:"city"`
	Company string `json:"company"`
}
