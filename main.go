package main

import (
	"github.com/radiantsdao/burnwatch/cmd"
)

func main() {
	cmd.Execute()
}
