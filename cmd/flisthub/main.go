// Copyright © 2018 One Concern

package main

import (
	"github.com/oneconcern/flisthub/cmd/flisthub/cmd"
)

func main() {
	cmd.Execute()
}
