package notify

import (
	"fmt"
	"net"
)

func newListener(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

func clientID(n uint64) string {
	return fmt.Sprintf("client-%d", n)
}
