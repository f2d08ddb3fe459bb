package main

import (
	"github.com/maxgio92/adaprof/pkg/cmd"
)

func main() {
	cmd.Execute()
}
