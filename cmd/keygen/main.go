// keygen generates (or loads) the issuer's Ed25519 signing key and prints the
// key id and public JWKS. Useful for provisioning before first start and for
// wiring verifiers that pin the issuer key out of band.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"agetoken/internal/issuer"
)

func main() {
	out := flag.String("out", "issuer_ed25519.jwk", "path of the issuer JWK file (created if missing)")
	flag.Parse()

	keys, err := issuer.NewFileProvider(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}

	kid, _, err := keys.CurrentSigningKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}

	jwks, err := json.MarshalIndent(keys.PublicJWKS(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}

	thumbprint := keys.Thumbprint()
	fmt.Printf("key file:   %s\n", *out)
	fmt.Printf("kid:        %s\n", kid)
	fmt.Printf("thumbprint: %s\n", hex.EncodeToString(thumbprint[:]))
	fmt.Printf("public jwks:\n%s\n", jwks)
}
