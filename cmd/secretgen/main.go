package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
)

// secretgen prints a fresh shared secret for the relay. Configure the same
// value on the relay (RELAY_SHARED_SECRET) and the frontend; without one
// the relay runs in open mode.
func main() {
	size := flag.Int("bytes", 32, "secret length in bytes before hex encoding")
	flag.Parse()

	if *size < 16 {
		fmt.Fprintln(os.Stderr, "error: -bytes must be at least 16")
		os.Exit(1)
	}

	buf := make([]byte, *size)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("failed to generate secret: %v", err)
	}
	secret := hex.EncodeToString(buf)

	fmt.Println("=== Relay Shared Secret ===")
	fmt.Println()
	fmt.Printf("  RELAY_SHARED_SECRET=%s\n", secret)
	fmt.Println()
	fmt.Println("Set this on the relay and send it from trusted frontends")
	fmt.Println("as the X-Relay-Secret header on every request.")
}
