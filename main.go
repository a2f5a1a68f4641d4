package main

import "github.com/redactyl/scout/cmd/scout"

func main() { scout.Execute() }
