package main

import "github.com/connecmaq/marketplace-api/cmd"

func main() {
	cmd.Execute()
}
