package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoQueries indicates no queries were found in the configuration.
	ErrNoQueries = errors.New("no queries found in configuration")
	// ErrMissingRequiredField indicates a required field is missing.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrInvalidPlatform indicates a query names an unsupported platform.
	ErrInvalidPlatform = errors.New("invalid platform")
	// ErrDuplicateName indicates two queries or groups share a name.
	ErrDuplicateName = errors.New("duplicate query or group name")
	// ErrQueryNotFound indicates the named query is not configured.
	ErrQueryNotFound = errors.New("query not found")
	// ErrGroupNotFound indicates the named query group is not configured.
	ErrGroupNotFound = errors.New("query group not found")
	// ErrUnknownMember indicates a group references a name that is neither a
	// query nor a group.
	ErrUnknownMember = errors.New("unknown group member")
	// ErrGroupCycle indicates query groups reference each other in a cycle.
	ErrGroupCycle = errors.New("query group cycle detected")
)
