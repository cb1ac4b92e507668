// Command ringwire runs a demo node that publishes sequenced messages or
// listens for them and prints what it decodes.
package main

import "os"

func main() {
	os.Exit(run(ParseFlags(os.Args[1:])))
}
