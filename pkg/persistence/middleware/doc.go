// Package middleware decorates session stores: envelope encryption of whole
// states and masking of personal data before it reaches storage.
package middleware
