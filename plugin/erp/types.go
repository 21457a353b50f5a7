// Package erp provides the action executors for the ERP backend simulator:
// customer lookup, loop-length lookup, profile recommendation, current-charge
// lookup, and order submission.
//
// Each executor separates two failure classes. A transport failure returns a
// Go error and aborts the enclosing turn. A business-rule rejection (non-2xx
// status or an error payload) is a soft error: it comes back inside the
// result's Err field and becomes conversational content.
package erp

// Customer is the normalized result of a customer lookup.
type Customer struct {
	Name           string
	Address        string
	ServiceProfile string
	ServiceOTC     string
	ServiceMRC     string
	EquipOTC       string
	EquipMRC       string

	// Err carries a soft error instead of the fields above.
	Err string
}

// Loop is the result of a loop-length lookup.
type Loop struct {
	Length string
	Err    string
}

// Recommendation is the result of a service-profile recommendation.
type Recommendation struct {
	Profile string // downstream/upstream bitrate pair
	Name    string
	ID      string
	MRC     string
	Err     string
}

// Charge is the result of a current-charge lookup. New is only populated
// when the backend reports a pending new monthly charge alongside the
// current one.
type Charge struct {
	Current string
	New     string
	Err     string
}

// Order is the result of an order submission.
type Order struct {
	Number string
	Err    string
}
