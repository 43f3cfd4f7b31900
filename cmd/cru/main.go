// Package main provides the CLI entrypoint for cru.
package main

func main() {
	Execute()
}
