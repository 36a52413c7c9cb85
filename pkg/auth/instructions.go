package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowKeySetupGuide prints how to give the gallery builder SSH access
func ShowKeySetupGuide(w io.Writer, host, user string) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "SSH ACCESS SETUP")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "The inventory and upload steps log in to %s as %s.\n", host, user)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 1: Create a key if you do not have one")
	fmt.Fprintln(w, "   ssh-keygen -t ed25519 -f ~/.ssh/id_ed25519")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 2: Install the public key on the server")
	fmt.Fprintf(w, "   ssh-copy-id -i ~/.ssh/id_ed25519.pub %s@%s\n", user, host)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 3: Record the host key")
	fmt.Fprintf(w, "   ssh %s@%s true   (accept the fingerprint once)\n", user, host)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "STEP 4: If the key has a passphrase, store it")
	fmt.Fprintln(w, "   tildegallery auth set")
	fmt.Fprintf(w, "   or export %s\n", PassphraseEnv)
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
