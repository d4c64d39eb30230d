package main

import (
	"github.com/peerview/peerview/internal/command"
	"github.com/peerview/peerview/internal/logging"
)

func main() {
	logging.Init()
	command.Execute()
}
