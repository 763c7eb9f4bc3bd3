package main

import (
	"os"

	"oci-volume-backup/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
