// Package errorcodes defines the field 39 response codes returned by the host.
// ResponseCode holds the two-character code and a human-readable description.
package errorcodes

// Predefined response codes.
var (
	Approved        = ResponseCode{"00", "Approved"}
	GeneralError    = ResponseCode{"05", "Do not honour, security engine error"}
	Unrecognized    = ResponseCode{"40", "Requested function not supported"}
	IncorrectPIN    = ResponseCode{"55", "Incorrect PIN"}
	CVVInvalid      = ResponseCode{"N7", "Decline for CVV2 failure"}
	SystemMalfunc   = ResponseCode{"96", "System malfunction"}
	responseCatalog = []ResponseCode{
		Approved,
		GeneralError,
		Unrecognized,
		IncorrectPIN,
		CVVInvalid,
		SystemMalfunc,
	}
)

// ResponseCode represents a host response with its code and description.
type ResponseCode struct {
	Code        string // two-character response code
	Description string // human-readable description
}

// Error implements the Go error interface: "<Code>: <Description>".
func (r ResponseCode) Error() string {
	return r.Code + ": " + r.Description
}

// CodeOnly returns only the response code (e.g., "55"), for embedding in field 39.
func (r ResponseCode) CodeOnly() string {
	return r.Code
}

// IsApproved reports whether the code is the approval code.
func (r ResponseCode) IsApproved() bool {
	return r.Code == Approved.Code
}

// Lookup returns the catalogued response code for code, or a ResponseCode
// with an empty description when the code is not known.
func Lookup(code string) ResponseCode {
	for _, rc := range responseCatalog {
		if rc.Code == code {
			return rc
		}
	}

	return ResponseCode{Code: code}
}
