package main

import "github.com/classware/attendance/cmd"

func main() {
	cmd.Execute()
}
