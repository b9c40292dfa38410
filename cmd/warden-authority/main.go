// Command warden-authority issues tokens and pushes session notices to admins.
package main

import (
	"log"

	"warden/cmd/internal/app"
)

func main() {
	if err := app.RunAuthority(); err != nil {
		log.Fatal(err)
	}
}
