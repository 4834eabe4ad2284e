package main

import "github.com/turbolytics/duesync/internal/cmd"

func main() {
	cmd.Execute()
}
