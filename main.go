package main

import (
	"github.com/minghsuy/pixel-detector-v2/cmd"
	"github.com/minghsuy/pixel-detector-v2/internal/config"
)

func main() {
	config.LoadConfig()
	cmd.Execute()
}
