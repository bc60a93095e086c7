package main

import (
	"github.com/admi-n/nullshot-auditor/src/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		cmd.PrintFatal(err)
	}
}
