// Package token generates and validates opaque session tokens.
//
// Tokens have the shape <prefix>_<unix-millis>_<32 lowercase hex chars>. The hex
// suffix is 16 bytes drawn from the operating system CSPRNG and carries the
// entire unpredictability guarantee; the millisecond timestamp only makes tokens
// lexically sortable by creation order. The store enforces key uniqueness on
// insertion regardless, so the generator performs no duplicate checks of its own.
package token
