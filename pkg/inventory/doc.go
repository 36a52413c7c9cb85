// Package inventory enumerates the users of a tilde server together with
// the modification time of their public_html directory.
//
// The listing is a full census: a user missing from it no longer exists as
// far as the gallery is concerned.
package inventory
