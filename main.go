package main

import "github.com/sensorforge/multicorder/cmd"

func main() {
	cmd.Execute()
}
