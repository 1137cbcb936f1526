package main

import (
	"db-datasync/cmd"

	_ "github.com/microsoft/go-mssqldb"
)

func main() {
	cmd.Execute()
}
