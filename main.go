package main

import "github.com/Ananth-NQI/voicecall-backend/internal/cli"

func main() {
	cli.Execute()
}
