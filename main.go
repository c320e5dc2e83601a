package main

import (
	"os"

	"github.com/shouni/go-snb-rates/cmd"
)

func main() {
	// サブコマンドなしで起動した場合は run を実行する
	os.Args = cmd.WithDefaultCommand(os.Args)
	cmd.Execute()
}
