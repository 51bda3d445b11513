package main

import "messenger-service/cmd"

func main() {
	cmd.Execute()
}
