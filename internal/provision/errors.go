// internal/provision/errors.go
//
// Typed provisioning errors.
//
// Each orchestration step fails with a distinct Kind so the API layer can
// pick the right HTTP status and the caller can tell validation problems
// from operational ones.  There are no retries anywhere in this flow;
// every error is final for the request.
package provision

import "fmt"

// Kind discriminates provisioning failures.
type Kind string

const (
	KindMissingField        Kind = "missing_field"
	KindDuplicateHostname   Kind = "duplicate_hostname"
	KindSiteCreationFailed  Kind = "site_creation_failed"
	KindNoTenantTables      Kind = "no_tenant_tables"
	KindDatabaseSetupFailed Kind = "database_setup_failed"
	KindAdminCreationFailed Kind = "admin_creation_failed"
	KindTimeout             Kind = "timeout"
	KindInternal            Kind = "internal"
)

// Error carries the failure kind, the step that produced it, and an
// operator-readable message.  Field is set for validation errors only.
type Error struct {
	Kind  Kind
	Field string
	Step  string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provision: %s: %s: %v", e.Step, e.Msg, e.Err)
	}
	return fmt.Sprintf("provision: %s: %s", e.Step, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// missingField builds the canonical validation error for one field.
func missingField(name string) *Error {
	return &Error{
		Kind:  KindMissingField,
		Field: name,
		Step:  "validate",
		Msg:   name + " is required",
	}
}

// stepError wraps an underlying failure with its kind and step name.
func stepError(kind Kind, step, msg string, err error) *Error {
	return &Error{Kind: kind, Step: step, Msg: msg, Err: err}
}
