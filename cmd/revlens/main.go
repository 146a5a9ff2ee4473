// Package main is the entry point for revlens, the revenue and usage
// reporting service.
package main

import (
	// Load .env files automatically so local development picks up
	// REVLENS_* variables without extra tooling.
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	Execute()
}
