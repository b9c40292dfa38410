// Command warden-edge verifies tokens at the gateway and proxies requests.
package main

import (
	"log"

	"warden/cmd/internal/app"
)

func main() {
	if err := app.RunEdge(); err != nil {
		log.Fatal(err)
	}
}
