package main

import "github.com/klytics/xlreport/cmd"

func main() {
	cmd.Execute()
}
