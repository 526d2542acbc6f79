// Package main is the entry point for cmskit.
package main

func main() {
	Execute()
}
