// Package remote talks to the tilde server: running the inventory command
// and unpacking published archives. Client speaks SSH through
// golang.org/x/crypto/ssh, verifying host keys against known_hosts;
// LocalRunner runs the same commands on this machine when the gallery is
// built on the server itself.
package remote
