// Command authctl administers an authcore database: it applies migrations,
// lists, disables and purges users, and expires sessions.
//
// It reads the same configuration as the server (environment + .env), so
// pointing it at a deployment is a matter of running it with that
// deployment's environment.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
