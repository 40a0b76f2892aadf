// goodsfeedctl - административные операции над лентами и счётчиками:
// согласование, принудительная синхронизация, перестроение индексов,
// чтение страниц и проигрывание файлов событий.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env.local")

	if err := newRootCmd(openFeed).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
