package main

import "github.com/nick-seward/vibe-dj-sub000/cmd"

func main() {
	cmd.Execute()
}
