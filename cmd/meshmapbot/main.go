package main

import "meshmap/telegram-bot/internal/cli"

func main() {
	cli.Execute()
}
