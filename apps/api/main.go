package main

import (
	"log"
	_ "net/http/pprof" // registers /debug/pprof on the default mux

	"github.com/trezcool/remindme/core"
)

// TODO:
// - APM/Tracing
// - CSRF
func main() {
	startWithDig(core.NewConfig)
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
