package main

import (
	"os"

	slurptuncli "github.com/carlmontanari/slurptun/cli"
)

func main() {
	err := slurptuncli.Entrypoint().Run(os.Args)
	if err != nil {
		panic(err)
	}
}
