package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/axonledger/axon/node"
)

func main() {
	killChan := make(chan os.Signal, 1)
	signal.Notify(killChan, syscall.SIGINT, syscall.SIGTERM)

	n := node.New()
	go func() {
		<-killChan
		n.StopAndWait()
	}()

	n.Start()
	<-n.Ctx().Done()

	n.StopAndWait()
}
