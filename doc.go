/*
Package filecast is a tiny event-driven TCP server that hands out one file. It makes direct epoll and kqueue
syscalls rather than using the standard Go net package: a single event-loop accepts connections, reads the
configured file from disk afresh for every connection, writes the whole content to the peer and closes the
connection. Nothing sent by the peer is interpreted.

If the file cannot be read when a connection arrives, the peer receives the text of FileNotFoundMessage
in its place.

Serving a file on port 9000:

	package main

	import (
		"log"

		"github.com/filecast/filecast"
	)

	func main() {
		log.Fatal(filecast.Run(&filecast.BuiltinEventEngine{}, "tcp4://:9000", "/etc/motd"))
	}
*/
package filecast
