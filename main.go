package main

import (
	"time"
	_ "time/tzdata"

	"chatline/app"
)

func main() {
	time.Local = time.UTC
	app.Run()
}
