package main

import (
	_ "time/tzdata"

	"github.com/MMOSHII/Face-Attendance-System/cmd"
)

func main() {
	cmd.Execute()
}
